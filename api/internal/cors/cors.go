// Package cors decides which browser origins may call the API and writes the
// matching response headers.
package cors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const Wildcard = "*"

const (
	AllowMethods = "POST, OPTIONS"
	AllowHeaders = "Content-Type, Authorization"

	DefaultMaxAge = 10 * time.Minute
)

var ErrOriginRejected = errors.New("origin not allowed")

// Decision is what the policy says about one request's Origin header.
// An empty AllowedOrigin means no Access-Control-Allow-Origin is written.
type Decision struct {
	AllowedOrigin string
	Vary          bool
}

// Policy is built once at start-up and never mutated.
type Policy struct {
	allowAll bool
	origins  map[string]struct{}
	maxAge   time.Duration
}

// NewPolicy builds a policy from the configured allow-list. A "*" entry allows
// every origin. Entries are compared without a trailing slash.
func NewPolicy(allowList []string, maxAge time.Duration) *Policy {
	p := &Policy{
		origins: make(map[string]struct{}, len(allowList)),
		maxAge:  maxAge,
	}
	if p.maxAge <= 0 {
		p.maxAge = DefaultMaxAge
	}
	for _, o := range allowList {
		o = normalizeOrigin(o)
		switch o {
		case "":
		case Wildcard:
			p.allowAll = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	return p
}

// ParseAllowList splits a comma separated FRONTEND_ORIGIN value.
func ParseAllowList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *Policy) AllowsAll() bool { return p.allowAll }

// Decide never falls back to "*" for a concrete allow-list.
func (p *Policy) Decide(origin string) (Decision, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return Decision{}, nil
	}
	if p.allowAll {
		return Decision{AllowedOrigin: Wildcard}, nil
	}
	if _, ok := p.origins[normalizeOrigin(origin)]; ok {
		return Decision{AllowedOrigin: origin, Vary: true}, nil
	}
	return Decision{Vary: true}, fmt.Errorf("%w: %s", ErrOriginRejected, origin)
}

// Apply writes the headers for d. Preflight adds the method/header/max-age set.
func (p *Policy) Apply(h http.Header, d Decision, preflight bool) {
	if d.Vary {
		h.Add("Vary", "Origin")
	}
	if d.AllowedOrigin != "" {
		h.Set("Access-Control-Allow-Origin", d.AllowedOrigin)
	}
	if preflight {
		h.Set("Access-Control-Allow-Methods", AllowMethods)
		h.Set("Access-Control-Allow-Headers", AllowHeaders)
		h.Set("Access-Control-Max-Age", strconv.Itoa(int(p.maxAge.Seconds())))
	}
}

// RejectFunc writes the response for a request whose origin was rejected.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware answers every OPTIONS request with 204 and an empty body. A
// rejected origin still gets the 204 but no Allow-Origin, so the browser fails
// the preflight. Other methods from a rejected origin go to reject.
func (p *Policy) Middleware(reject RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusForbidden)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := p.Decide(r.Header.Get("Origin"))

			if r.Method == http.MethodOptions {
				p.Apply(w.Header(), d, true)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			p.Apply(w.Header(), d, false)
			if err != nil {
				reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.TrimSpace(o), "/")
}
