package http

import (
	"errors"
	"net/http"

	"github.com/stephnangue/regbridge/config"
	"github.com/stephnangue/regbridge/intake"
	"github.com/stephnangue/regbridge/logger"
	"github.com/stephnangue/regbridge/registration"
	"github.com/stephnangue/regbridge/restconf"
)

// registrationHandler serves the client-registration routes. Authorization
// has already happened by the time these handlers run; they only translate
// and relay.
type registrationHandler struct {
	cfg   *config.Config
	admin *restconf.Client
	log   logger.Logger
}

// handleUpsert creates or replaces a client registration. The inbound
// DCR-style document is normalized into the canonical upstream form and
// written with a full-replace PUT.
func (h *registrationHandler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	clientID := lastPathSegment(r)

	doc, err := intake.Decode(r.Body)
	if err != nil {
		h.log.Warn("rejecting malformed registration payload",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		respondError(w, http.StatusBadRequest, "invalid registration payload")
		return
	}

	client := registration.Normalize(doc, clientID, registration.Options{
		DefaultScopes:         h.cfg.DefaultScopes,
		AllowedAuthenticators: h.cfg.AllowedAuthenticators,
	})

	h.log.Debug("normalized client registration",
		logger.String("client_id", client.ID),
		logger.String("name", client.Name),
		logger.Int("redirect_uris", len(client.RedirectURIs)),
		logger.Int("capabilities", len(client.Capabilities)),
		logger.Bool("enabled", client.Enabled),
	)

	if err := h.admin.Upsert(r.Context(), client.ID, client); err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}

	respondOk(w, map[string]bool{"OK": true})
}

// handleDelete removes a client registration.
func (h *registrationHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	clientID := lastPathSegment(r)

	if err := h.admin.Delete(r.Context(), clientID); err != nil {
		h.respondUpstreamError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondUpstreamError maps adapter failures onto the caller's response.
// Upstream rejections pass through with their original status, content
// type and body so operators keep the upstream diagnostic unmodified;
// transport failures become a bad gateway. No compensating action is
// attempted either way.
func (h *registrationHandler) respondUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *restconf.RejectedError
	if errors.As(err, &rejected) {
		if rejected.Body == "" {
			respondError(w, rejected.StatusCode, rejected.Error())
			return
		}
		if rejected.ContentType != "" {
			w.Header().Set("Content-Type", rejected.ContentType)
		}
		w.WriteHeader(rejected.StatusCode)
		w.Write([]byte(rejected.Body))
		return
	}

	h.log.Error("upstream call failed",
		logger.String("path", r.URL.Path),
		logger.Err(err),
	)
	respondError(w, http.StatusBadGateway, "admin API unavailable")
}
