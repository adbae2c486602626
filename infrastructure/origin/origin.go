// Package origin normalizes and validates HTTP origins against the configured allow list.
package origin

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Policy is built once at startup and read-only afterwards.
type Policy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *slog.Logger
}

// NewPolicy accepts "*" and scheme://host entries, anything else is ignored with a warning.
func NewPolicy(origins []string, log *slog.Logger) *Policy {
	policy := &Policy{allowed: make(map[string]struct{}), log: log}
	for _, o := range origins {
		trimmed := strings.TrimSpace(o)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			policy.allowAll = true
			continue
		}
		normalized, ok := normalize(trimmed)
		if !ok {
			log.Warn("Ignoring invalid origin in configuration", "origin", o)
			continue
		}
		policy.allowed[normalized] = struct{}{}
	}
	return policy
}

// Allows reports whether a browser origin may talk to the relay.
func (p *Policy) Allows(o string) bool {
	if p.allowAll {
		return true
	}
	normalized, ok := normalize(o)
	if !ok {
		return false
	}
	_, exists := p.allowed[normalized]
	return exists
}

// AllowsAll reports whether "*" was configured.
func (p *Policy) AllowsAll() bool {
	return p.allowAll
}

// CheckOrigin is the websocket upgrade hook.
// Requests without an Origin header do not come from a browser and are let through,
// the bearer token still authenticates them.
func (p *Policy) CheckOrigin(r *http.Request) bool {
	o := r.Header.Get("Origin")
	if o == "" || p.Allows(o) {
		return true
	}
	p.log.Warn("Blocked websocket connection from disallowed origin", "origin", o)
	return false
}

func normalize(o string) (string, bool) {
	parsed, err := url.Parse(o)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
