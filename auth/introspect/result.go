package introspect

import (
	"time"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// Result is the outcome of validating one token against the authorization
// server.
type Result struct {
	// Active reports whether the token is currently valid.
	Active bool

	// Scopes is the token's scope claim, parsed from its space-delimited
	// wire form.
	Scopes []string

	// ExpiresAt is the token's own expiry when the server exposed one,
	// zero otherwise. Cache freshness is governed by the cache TTL, not by
	// this value.
	ExpiresAt time.Time
}

// SatisfiesAnyScope reports whether the result authorizes an operation
// requiring any of the given scopes. An inactive result never satisfies a
// scope check. An empty required list means authentication only: any active
// result qualifies.
func (r Result) SatisfiesAnyScope(required []string) bool {
	if !r.Active {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, scope := range required {
		if strutil.StrListContains(r.Scopes, scope) {
			return true
		}
	}
	return false
}
