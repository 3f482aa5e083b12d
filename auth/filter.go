package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stephnangue/regbridge/auth/introspect"
	"github.com/stephnangue/regbridge/auth/token"
	"github.com/stephnangue/regbridge/logger"
)

// Filter gates protected operations behind bearer-token authorization.
// Every request either reaches the wrapped handler with a validated active
// token, or is rejected without the handler ever running.
type Filter struct {
	log   logger.Logger
	cache token.Cache
}

// NewFilter creates a Filter backed by the given token cache.
func NewFilter(cache token.Cache, log logger.Logger) *Filter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Filter{
		log:   log,
		cache: cache,
	}
}

// RequireToken returns a middleware that admits only requests carrying a
// bearer token the authorization server reports as active. With a
// non-empty scope list, the token's scopes must additionally intersect it;
// an empty list means authentication only, any active token suffices.
//
// Rejections carry only a status code and a minimal body: neither the
// token value nor the token's scopes appear in any response.
func (f *Filter) RequireToken(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extractBearer(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="regbridge", error="invalid_token", error_description="missing bearer token"`)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			result, err := f.cache.GetOrFetch(r.Context(), raw)
			if err != nil {
				// Inability to validate is a hard failure, never an
				// implicit allow.
				f.log.Error("token validation failed",
					logger.String("path", r.URL.Path),
					logger.Err(err),
				)
				if errors.Is(err, introspect.ErrUnavailable) || errors.Is(err, introspect.ErrMalformedResponse) {
					writeError(w, http.StatusServiceUnavailable, "token validation unavailable")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if !result.Active {
				w.Header().Set("WWW-Authenticate", `Bearer realm="regbridge", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if !result.SatisfiesAnyScope(scopes) {
				writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), result)))
		})
	}
}

// extractBearer pulls the bearer credential out of the Authorization
// header. The scheme comparison is case-insensitive.
func extractBearer(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(header[len("bearer "):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&errorResponse{Errors: []string{message}})
}
