// Package api exposes a small operational HTTP surface: liveness and a
// status snapshot of sessions and token allocations.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"teachbot/internal/auth"
	"teachbot/internal/session"
)

// Handler serves the status endpoints.
type Handler struct {
	registry *session.Registry
	store    *auth.Store
	started  time.Time
}

// NewHandler wires the status endpoints. store may be nil when the bot runs
// with the open policy.
func NewHandler(registry *session.Registry, store *auth.Store) *Handler {
	return &Handler{
		registry: registry,
		store:    store,
		started:  time.Now(),
	}
}

// RegisterRoutes attaches the endpoints to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	router.GET("/api/status", h.status)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) status(c *gin.Context) {
	resp := gin.H{
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"sessions":       h.registry.Len(),
	}
	if h.store != nil {
		total, allocated, err := h.store.Counts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["tokens"] = gin.H{"total": total, "allocated": allocated}
	}
	c.JSON(http.StatusOK, resp)
}
