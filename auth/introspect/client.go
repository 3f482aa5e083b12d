package introspect

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"golang.org/x/net/http2"

	"github.com/stephnangue/regbridge/logger"
)

var (
	// ErrUnavailable means the authorization server could not be reached or
	// answered with a transport-level failure.
	ErrUnavailable = errors.New("introspection endpoint unavailable")

	// ErrMalformedResponse means the authorization server answered but the
	// body could not be parsed as an introspection result.
	ErrMalformedResponse = errors.New("malformed introspection response")
)

const defaultTimeout = 10 * time.Second

// Config configures the introspection client.
type Config struct {
	// Endpoint is the full URL of the token introspection endpoint.
	Endpoint string

	// ClientID and ClientSecret are the credentials this service uses to
	// authenticate to the authorization server. They belong to regbridge,
	// not to the caller whose token is being introspected.
	ClientID     string
	ClientSecret string

	// VerifyTLS controls certificate verification; the process-wide policy
	// flag applies here.
	VerifyTLS bool

	// Timeout bounds each introspection call. Defaults to 10s.
	Timeout time.Duration

	Logger logger.Logger
}

// Client issues RFC 7662 style token introspection calls. Every call is
// side-effect-free on the authorization server and safe to retry, but the
// client performs exactly one attempt and surfaces failure to the caller.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       logger.Logger
}

// NewClient creates an introspection client with a pooled transport.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("introspection endpoint must not be empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	transport := httpClient.Transport.(*http.Transport)
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !cfg.VerifyTLS,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		endpoint:     cfg.Endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		logger:       log,
	}, nil
}

// introspectionResponse is the subset of the RFC 7662 response this service
// consumes.
type introspectionResponse struct {
	Active bool   `json:"active"`
	Scope  string `json:"scope"`
	Exp    int64  `json:"exp"`
}

// Introspect validates the given bearer token with the authorization
// server. The token is sent as the form subject; the call authenticates
// with the service's own client credentials over basic auth.
func (c *Client) Introspect(ctx context.Context, token string) (Result, error) {
	form := url.Values{}
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("introspection call failed", logger.Err(err))
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.Warn("introspection endpoint returned error status",
			logger.Int("status", resp.StatusCode),
		)
		return Result{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var wire introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := Result{
		Active: wire.Active,
		Scopes: strutil.ParseStringSlice(wire.Scope, " "),
	}
	if wire.Exp > 0 {
		result.ExpiresAt = time.Unix(wire.Exp, 0)
	}

	return result, nil
}
