// Package config loads the portal configuration from the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// RoomNamePattern constrains caller-supplied room names.
var RoomNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// secretKeyFile is consulted when OWUI_SECRET_KEY is unset.
const secretKeyFile = ".webui_secret_key"

type Config struct {
	Addr string

	// SubstrateURL is the client-facing room transport URL returned with
	// minted tokens. SubstrateHTTPURL is the server API endpoint the
	// reconciler talks to.
	SubstrateURL     string
	SubstrateHTTPURL string
	APIKey           string
	APISecret        string

	// SharedSecret verifies caller bearer credentials (HS256).
	SharedSecret string

	AgentName  string
	RoomPrefix string

	// TokenTTL bounds minted participant grants.
	TokenTTL time.Duration

	// AgentIdentityPrefix marks substrate-side agent participants; anyone
	// else counts as a human for the occupied-room guard.
	AgentIdentityPrefix string

	// IdentityPrefix namespaces participant identities minted here.
	IdentityPrefix string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// RecordRedisURL enables the redis reconciliation-record store; empty
	// keeps records in memory.
	RecordRedisURL string
	RecordTTL      time.Duration

	// Operational defaults
	SubstrateTimeout    time.Duration
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("OWUI_PORTAL_ADDR", ":8091"),
		SubstrateURL:        strings.TrimSpace(os.Getenv("LIVEKIT_URL")),
		SubstrateHTTPURL:    envOr("LIVEKIT_HTTP_URL", "http://127.0.0.1:7880"),
		APIKey:              strings.TrimSpace(os.Getenv("LIVEKIT_API_KEY")),
		APISecret:           strings.TrimSpace(os.Getenv("LIVEKIT_API_SECRET")),
		SharedSecret:        loadSharedSecret(),
		AgentName:           envOr("LIVEKIT_AGENT_NAME", "owui-voice"),
		RoomPrefix:          envOr("LIVEKIT_ROOM_PREFIX", "owui-voice"),
		TokenTTL:            envDurationOr("OWUI_PORTAL_TOKEN_TTL", 6*time.Hour),
		AgentIdentityPrefix: envOr("OWUI_PORTAL_AGENT_IDENTITY_PREFIX", "agent-"),
		IdentityPrefix:      envOr("OWUI_PORTAL_IDENTITY_PREFIX", "owui:"),
		CORSAllowedOrigins:  make(map[string]struct{}),
		RecordRedisURL:      strings.TrimSpace(os.Getenv("OWUI_PORTAL_RECORD_REDIS_URL")),
		RecordTTL:           envDurationOr("OWUI_PORTAL_RECORD_TTL", 24*time.Hour),
		SubstrateTimeout:    envDurationOr("OWUI_PORTAL_SUBSTRATE_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout:   envDurationOr("OWUI_PORTAL_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("OWUI_PORTAL_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("OWUI_PORTAL_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("OWUI_PORTAL_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.SubstrateURL == "" {
		return Config{}, fmt.Errorf("LIVEKIT_URL must be set")
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("LIVEKIT_API_KEY must be set")
	}
	if cfg.APISecret == "" {
		return Config{}, fmt.Errorf("LIVEKIT_API_SECRET must be set")
	}
	if cfg.SharedSecret == "" {
		return Config{}, fmt.Errorf("OWUI_SECRET_KEY (or %s file) must be set", secretKeyFile)
	}
	if !RoomNamePattern.MatchString(cfg.RoomPrefix) {
		return Config{}, fmt.Errorf("LIVEKIT_ROOM_PREFIX must match %s", RoomNamePattern.String())
	}
	if strings.TrimSpace(cfg.AgentName) == "" {
		return Config{}, fmt.Errorf("LIVEKIT_AGENT_NAME must not be empty")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("OWUI_PORTAL_TOKEN_TTL must be > 0")
	}
	if cfg.RecordTTL <= 0 {
		return Config{}, fmt.Errorf("OWUI_PORTAL_RECORD_TTL must be > 0")
	}
	if cfg.SubstrateTimeout <= 0 {
		return Config{}, fmt.Errorf("OWUI_PORTAL_SUBSTRATE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("OWUI_PORTAL_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("OWUI_PORTAL_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("OWUI_PORTAL_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

// loadSharedSecret prefers the environment and falls back to the secret key
// file the web UI writes next to its working directory.
func loadSharedSecret() string {
	if secret := strings.TrimSpace(os.Getenv("OWUI_SECRET_KEY")); secret != "" {
		return secret
	}
	raw, err := os.ReadFile(secretKeyFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
