package ratelimit

import "strings"

// unlimited marks endpoints that are never rate limited.
var unlimited = map[string]string{
	"/health":          "GET",
	"/api/view/stream": "GET",
}

// MatchEndpoint returns the configuration for a request path and method, or
// nil when none applies. Exact paths win over prefixes; a configured path
// ending in "/" matches every path below it.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if m, ok := unlimited[path]; ok && m == method {
		return &EndpointConfig{Path: path, Method: method}
	}

	for i := range configs {
		if configs[i].Path == path && configs[i].Method == method {
			return &configs[i]
		}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method || !strings.HasSuffix(c.Path, "/") || !strings.HasPrefix(path, c.Path) {
			continue
		}
		if best == nil || len(c.Path) > len(best.Path) {
			best = c
		}
	}
	return best
}
