package auth

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"teachbot/internal/redis"
)

// Outcome classifies an authentication attempt from a raw message.
type Outcome int

const (
	// OutcomeMalformed means the message did not carry a token at all.
	OutcomeMalformed Outcome = iota
	// OutcomeInvalidToken means the token is unknown or already used.
	OutcomeInvalidToken
	// OutcomeSuccess means the token was bound to the user.
	OutcomeSuccess
)

const tokenMarker = "!token"

const authCacheKeyPrefix = "teachbot:authorized:"

// Policy decides whether a user may talk to the session engine.
type Policy interface {
	// RequiresAuth reports whether unauthenticated users are turned away.
	RequiresAuth() bool
	// IsAuthorized reports whether the user already holds an allocated token.
	IsAuthorized(ctx context.Context, userID string) (bool, error)
	// TryAuthenticate attempts to redeem a token carried in the raw message.
	// Only meaningful when IsAuthorized returned false.
	TryAuthenticate(ctx context.Context, userID, msg string) (Outcome, error)
}

// OpenPolicy authorizes everyone and never consults a store.
type OpenPolicy struct{}

func (OpenPolicy) RequiresAuth() bool { return false }

func (OpenPolicy) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func (OpenPolicy) TryAuthenticate(ctx context.Context, userID, msg string) (Outcome, error) {
	return OutcomeSuccess, nil
}

// TokenPolicy gates access on the token store. A redis client, when present,
// caches positive authorization lookups so that authorized users skip the
// database on every message.
type TokenPolicy struct {
	store    *Store
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewTokenPolicy builds a token-gated policy. cache may be nil.
func NewTokenPolicy(store *Store, cache *redis.Client, cacheTTL time.Duration) *TokenPolicy {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &TokenPolicy{store: store, cache: cache, cacheTTL: cacheTTL}
}

func (p *TokenPolicy) RequiresAuth() bool { return true }

func (p *TokenPolicy) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	if p.cache != nil {
		if _, err := p.cache.Get(ctx, authCacheKeyPrefix+userID); err == nil {
			return true, nil
		}
		// cache miss or redis trouble: fall through to the store
	}
	ok, err := p.store.HasAllocatedToken(ctx, userID)
	if err != nil {
		return false, err
	}
	if ok {
		p.cacheAuthorized(ctx, userID)
	}
	return ok, nil
}

// TryAuthenticate parses "!token <token>" and, when the token checks out,
// allocates it to the user. Losing an allocation race after the validity
// check surfaces as OutcomeInvalidToken: from the user's point of view the
// token simply turned out to be unusable.
func (p *TokenPolicy) TryAuthenticate(ctx context.Context, userID, msg string) (Outcome, error) {
	token, ok := parseTokenMessage(msg)
	if !ok {
		return OutcomeMalformed, nil
	}

	valid, err := p.store.IsTokenValid(ctx, token)
	if err != nil {
		return OutcomeMalformed, err
	}
	if !valid {
		return OutcomeInvalidToken, nil
	}

	if err := p.store.Allocate(ctx, userID, token); err != nil {
		if errors.Is(err, ErrTokenAllocated) || errors.Is(err, ErrTokenInvalid) {
			return OutcomeInvalidToken, nil
		}
		return OutcomeMalformed, err
	}

	p.cacheAuthorized(ctx, userID)
	return OutcomeSuccess, nil
}

func (p *TokenPolicy) cacheAuthorized(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}
	// best effort: a dropped cache write only costs a store lookup later
	_ = p.cache.Set(ctx, authCacheKeyPrefix+userID, "1", p.cacheTTL)
}

// parseTokenMessage matches the fixed shape "!token <remainder>": the marker,
// at least one whitespace rune, then a non-empty token occupying the rest of
// the message.
func parseTokenMessage(msg string) (string, bool) {
	rest, ok := strings.CutPrefix(msg, tokenMarker)
	if !ok || rest == "" {
		return "", false
	}
	trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if len(trimmed) == len(rest) {
		// no whitespace after the marker ("!tokenabc")
		return "", false
	}
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}
