package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the bot.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Provider    string                    `json:"provider"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type BasicConfig struct {
	// DataDir holds the token store database. Created on startup if absent.
	DataDir string `json:"data_dir"`
	// TokenFile is the operator-provided credential list, one token per
	// line. Empty means no token gate: every user is authorized.
	TokenFile string `json:"token_file"`
	// ServerAddress enables the status API when non-empty.
	ServerAddress string `json:"server_address"`
	// HandleTimeoutSeconds bounds the processing of one inbound message.
	HandleTimeoutSeconds int `json:"handle_timeout_seconds"`
	// AuthCacheMinutes is the TTL for cached authorization lookups in redis.
	AuthCacheMinutes int `json:"auth_cache_minutes"`
	// SessionIdleMinutes evicts sessions idle longer than this. Zero keeps
	// sessions for the process lifetime.
	SessionIdleMinutes int `json:"session_idle_minutes"`
	// SweepIntervalMinutes is how often idle sessions are checked.
	SweepIntervalMinutes int `json:"sweep_interval_minutes"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.BasicConfig.DataDir == "" {
		cfg.BasicConfig.DataDir = "./data"
	}
	if !filepath.IsAbs(cfg.BasicConfig.DataDir) {
		cfg.BasicConfig.DataDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.DataDir)
	}
	if cfg.BasicConfig.TokenFile != "" && !filepath.IsAbs(cfg.BasicConfig.TokenFile) {
		cfg.BasicConfig.TokenFile = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.TokenFile)
	}

	return &cfg, nil
}
