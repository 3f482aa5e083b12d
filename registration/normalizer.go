package registration

import (
	"github.com/hashicorp/go-secure-stdlib/strutil"

	"github.com/stephnangue/regbridge/intake"
)

// PlaceholderRedirectURI is substituted when an interactive client is
// registered without a usable redirect target. The upstream schema rejects
// interactive clients with no redirect URI, so the write would otherwise
// fail for clients that defer redirect configuration.
const PlaceholderRedirectURI = "https://example.com"

// Options carries the process-wide defaults that seed every normalized
// registration.
type Options struct {
	// DefaultScopes seeds the scope list of every client.
	DefaultScopes []string

	// AllowedAuthenticators restricts interactive clients when non-empty.
	AllowedAuthenticators []string
}

// Normalize maps an inbound registration document to the canonical client
// representation. It is pure: the same document, path id and options always
// produce the same client, and no I/O happens here.
//
// Field resolution is first-non-absent across both naming conventions the
// DCR ecosystem uses (camelCase and snake_case); the path-derived id is the
// fallback for the client id only. Absent fields default rather than error.
func Normalize(doc *intake.Document, pathClientID string, opts Options) *CanonicalClient {
	name, _ := doc.GetFirstString("name", "client_name")
	description := doc.StringOrDefault("description", "")
	secret, _ := doc.GetFirstString("secret", "client_secret")
	enabled := doc.BoolOrDefault("enabled", true)

	clientID, ok := doc.GetFirstString("clientId", "client_id")
	if !ok || clientID == "" {
		clientID = pathClientID
	}

	redirectURIs, _ := doc.GetFirstStringSlice("redirectUris", "redirect_uris")

	grantTypes, _ := doc.GetStringSlice("grant_types")

	// Each capability is independently the OR of its explicit flag and its
	// grant-type membership: either signal alone enables the flow.
	capabilities := make(CapabilitySet)
	if doc.BoolOrDefault("standardFlowEnabled", false) || strutil.StrListContains(grantTypes, "authorization_code") {
		capabilities.Add(CapabilityCode)
	}
	if doc.BoolOrDefault("implicitFlowEnabled", false) || strutil.StrListContains(grantTypes, "implicit") {
		capabilities.Add(CapabilityImplicit)
	}
	if doc.BoolOrDefault("serviceAccountsEnabled", false) || strutil.StrListContains(grantTypes, "client_credentials") {
		capabilities.Add(CapabilityClientCredentials)
	}
	if doc.BoolOrDefault("directAccessGrantsEnabled", false) || strutil.StrListContains(grantTypes, "password") {
		capabilities.Add(CapabilityROPC)
	}

	// An interactive client must have a usable redirect target before it is
	// submitted upstream.
	if capabilities.Interactive() && redirectTargetUnusable(redirectURIs) {
		redirectURIs = []string{PlaceholderRedirectURI}
	}
	if redirectURIs == nil {
		redirectURIs = []string{}
	}

	scopes := make([]string, 0, len(opts.DefaultScopes)+1)
	scopes = append(scopes, opts.DefaultScopes...)
	if capabilities.Interactive() {
		scopes = append(scopes, "openid")
	}

	return &CanonicalClient{
		ID:                    clientID,
		Name:                  name,
		Description:           description,
		Secret:                secret,
		RedirectURIs:          redirectURIs,
		Enabled:               enabled,
		Capabilities:          capabilities,
		Scopes:                scopes,
		AllowedAuthenticators: opts.AllowedAuthenticators,
	}
}

// redirectTargetUnusable reports whether the redirect URI list provides no
// usable target: empty, or a single empty string.
func redirectTargetUnusable(uris []string) bool {
	if len(uris) == 0 {
		return true
	}
	return len(uris) == 1 && uris[0] == ""
}
