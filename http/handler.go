package http

import (
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/stephnangue/regbridge/auth"
	"github.com/stephnangue/regbridge/config"
	"github.com/stephnangue/regbridge/logger"
	"github.com/stephnangue/regbridge/restconf"
)

// HandlerProperties contains configuration for the HTTP handler
type HandlerProperties struct {
	Config *config.Config
	Filter *auth.Filter
	Admin  *restconf.Client
	Logger logger.Logger
}

// Handler creates and returns the main HTTP handler for regbridge.
//
// The registration routes are mounted under the configured issuer path and
// gated by the authorization filter with an empty required-scope set: any
// caller holding an active token may register or delete clients. That
// permissiveness is deliberate and matches the deployed behavior this
// service replaces; tightening it is an operational decision, not a code
// default.
func Handler(props *HandlerProperties) http.Handler {
	h := &registrationHandler{
		cfg:   props.Config,
		admin: props.Admin,
		log:   props.Logger,
	}

	r := chi.NewRouter()

	r.Get("/healthz", handleHealth)

	registrations := path.Join(props.Config.IssuerPath, "clients-registrations", "default")

	r.Group(func(r chi.Router) {
		r.Use(props.Filter.RequireToken())

		r.Post(registrations+"/{client_id}", h.handleUpsert)
		r.Put(registrations+"/{client_id}", h.handleUpsert)
		r.Delete(registrations+"/{client_id}", h.handleDelete)

		// Trailing-slash variants resolve to the same handlers
		r.Post(registrations+"/{client_id}/", h.handleUpsert)
		r.Put(registrations+"/{client_id}/", h.handleUpsert)
		r.Delete(registrations+"/{client_id}/", h.handleDelete)
	})

	return r
}

// handleHealth reports liveness only; it is deliberately unauthenticated
// and carries no internal state.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOk(w, map[string]string{"status": "ok"})
}
