package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

// respondError writes an error response with the given status code and message.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := &ErrorResponse{
		Errors: []string{message},
	}

	json.NewEncoder(w).Encode(resp)
}

// respondOk writes a successful JSON response with status 200.
func respondOk(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// lastPathSegment returns the final component of the request path. The
// client id is always taken from the raw (escaped) path, not from the
// router's parsed parameter, so an encoded slash inside the id stays one
// segment, matching how the router dispatched the request. The single
// segment is then unescaped so downstream code sees the literal id. A
// trailing slash is tolerated.
func lastPathSegment(r *http.Request) string {
	p := strings.TrimSuffix(r.URL.EscapedPath(), "/")
	seg := p[strings.LastIndex(p, "/")+1:]
	if unescaped, err := url.PathUnescape(seg); err == nil {
		return unescaped
	}
	return seg
}
