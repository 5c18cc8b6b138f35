package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// EndpointConfig overrides the default limit for one route. A Path ending in
// "/" covers every path below it, so all session ids share one bucket.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	// Burst defaults to Limit
	Burst int
}

// prefix reports whether the config covers a subtree rather than one path
func (c *EndpointConfig) prefix() bool {
	return strings.HasSuffix(c.Path, "/")
}

func (c *EndpointConfig) matches(path, method string) bool {
	if c.Method != method {
		return false
	}
	if c.prefix() {
		return strings.HasPrefix(path, c.Path)
	}
	return c.Path == path
}

// unlimited routes never consume tokens
var unlimited = &EndpointConfig{}

// DefaultEndpointConfigs returns the per-route limits applied on top of the
// default. Session creation spends generation quota so it is the tightest.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/sessions", Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/sessions/", Method: http.MethodDelete, Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/score", Method: http.MethodPost, Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// MatchEndpoint returns the config governing a request, or nil when the
// default limit applies. Exact paths win over prefixes and the longest
// prefix wins among prefixes. GET /health is unlimited.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == http.MethodGet {
		return unlimited
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if !c.matches(path, method) {
			continue
		}
		if !c.prefix() {
			return c
		}
		if best == nil || len(c.Path) > len(best.Path) {
			best = c
		}
	}
	return best
}
