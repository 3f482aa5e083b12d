package registration

// Capability is one of the OAuth grant mechanisms a client may be enabled
// for. The names follow the upstream RESTCONF schema.
type Capability string

const (
	CapabilityCode              Capability = "code"
	CapabilityImplicit          Capability = "implicit"
	CapabilityClientCredentials Capability = "client-credentials"
	CapabilityROPC              Capability = "resource-owner-password-credentials"
)

// CapabilitySet is the set of capabilities resolved for a client.
type CapabilitySet map[Capability]struct{}

// Add inserts a capability into the set.
func (s CapabilitySet) Add(c Capability) {
	s[c] = struct{}{}
}

// Has reports whether the capability is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Interactive reports whether the set contains a browser-based flow,
// i.e. one that needs a redirect target and user authentication.
func (s CapabilitySet) Interactive() bool {
	return s.Has(CapabilityCode) || s.Has(CapabilityImplicit)
}

// UsesSecret reports whether the set contains a flow that authenticates
// with a client secret.
func (s CapabilitySet) UsesSecret() bool {
	return s.Has(CapabilityCode) || s.Has(CapabilityClientCredentials) || s.Has(CapabilityROPC)
}

// CanonicalClient is the normalized registration submitted upstream. It is a
// request-scoped value object; nothing retains it past the response.
type CanonicalClient struct {
	ID                    string
	Name                  string
	Description           string
	Secret                string
	RedirectURIs          []string
	Enabled               bool
	Capabilities          CapabilitySet
	Scopes                []string
	AllowedAuthenticators []string
}

// RestconfDocument renders the client as the upstream YANG-modeled JSON
// body, wrapped in the profile-oauth:client envelope. Conditional members
// are keyed on capabilities, not on value emptiness: a client whose flows
// use a secret carries the secret member even when the secret is empty.
func (c *CanonicalClient) RestconfDocument() map[string]interface{} {
	capabilities := make(map[string]interface{}, len(c.Capabilities))
	for capability := range c.Capabilities {
		// YANG presence containers encode as a single null element
		capabilities[string(capability)] = []interface{}{nil}
	}

	client := map[string]interface{}{
		"id":            c.ID,
		"client-name":   c.Name,
		"description":   c.Description,
		"redirect-uris": c.RedirectURIs,
		"capabilities":  capabilities,
		"scope":         c.Scopes,
		"enabled":       c.Enabled,
	}

	if c.Capabilities.UsesSecret() {
		client["secret"] = c.Secret
	}

	if c.Capabilities.Interactive() && len(c.AllowedAuthenticators) > 0 {
		client["user-authentication"] = map[string]interface{}{
			"allowed-authenticators": c.AllowedAuthenticators,
		}
	}

	return map[string]interface{}{
		"profile-oauth:client": client,
	}
}
