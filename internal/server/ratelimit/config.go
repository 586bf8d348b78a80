package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/resume-coach/internal/config"
)

// EndpointConfig limits one route. Path segments equal to "*" match any
// single segment; a trailing "/" matches by prefix.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	Burst  int // defaults to Limit when zero
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// FromSettings builds the limiter configuration from the loaded settings.
// Turn-producing routes share the turn limit; training runs are capped
// separately because each one issues many model calls.
func FromSettings(s config.RateLimitConfig) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}
	turn := func(method, path string) EndpointConfig {
		return EndpointConfig{Path: path, Method: method, Limit: s.TurnLimit, Window: s.TurnWindow, Burst: s.TurnBurst}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultLimit,
		DefaultWindow:   s.DefaultWindow,
		CleanupInterval: s.CleanupInterval,
		Whitelist:       toSet(s.Whitelist),
		Blacklist:       toSet(s.Blacklist),
		EndpointConfigs: []EndpointConfig{
			turn(http.MethodPost, "/api/documents/*/turns"),
			turn(http.MethodGet, "/api/documents/*/turns/ws"),
			turn(http.MethodPost, "/api/documents/*/import"),
			turn(http.MethodPost, "/api/documents/*/import-url"),
			turn(http.MethodPost, "/api/documents/*/import-object"),
			{Path: "/api/training/levels/*/run", Method: http.MethodPost, Limit: 10, Window: time.Hour, Burst: 2},
		},
	}
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, item := range list {
		for _, ip := range strings.Split(item, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				set[ip] = true
			}
		}
	}
	return set
}
