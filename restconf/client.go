package restconf

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/stephnangue/regbridge/logger"
	"github.com/stephnangue/regbridge/registration"
)

// clientEndpointFormat is the RESTCONF resource path of one OAuth client
// inside the config-backed client store: base URL, profile id, client id.
const clientEndpointFormat = "%s/admin/api/restconf/data/base:profiles/base:profile=%s,oauth-service/base:settings/profile-oauth:authorization-server/profile-oauth:client-store/profile-oauth:config-backed/client=%s"

// yangDataJSON is the media type the admin API speaks.
const yangDataJSON = "application/yang-data+json"

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBodyLen = 8 * 1024
)

// ErrUnavailable means the admin API could not be reached or the call
// failed at the transport level.
var ErrUnavailable = errors.New("admin API unavailable")

// RejectedError means the admin API answered a well-formed request with an
// error status. The upstream status, content type and body are preserved
// so the caller can pass the diagnostic through unmodified.
type RejectedError struct {
	StatusCode  int
	ContentType string
	Body        string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("admin API rejected request: status %d", e.StatusCode)
}

// Config configures the admin API client.
type Config struct {
	// BaseURL is the scheme://host[:port] of the admin API.
	BaseURL string

	// Username and Password are the fixed service-level credentials; the
	// end user's token is never forwarded upstream.
	Username string
	Password string

	// ProfileID selects the OAuth profile the clients are written into.
	ProfileID string

	// VerifyTLS controls certificate verification; the process-wide policy
	// flag applies here.
	VerifyTLS bool

	// Timeout bounds each call. Defaults to 15s.
	Timeout time.Duration

	// MaxRetries controls retrying on 5xx responses. It defaults to 0:
	// registration writes are surfaced to the caller rather than silently
	// retried.
	MaxRetries int

	// Limiter, when set, rate limits outbound calls. Nil means no limit.
	Limiter *rate.Limiter

	Logger logger.Logger
}

// Client writes client registrations into the admin API's config-backed
// client store. Upsert is a full replace keyed by (profile, client id), so
// every write is idempotent. The client performs no compensating action on
// failure; the upstream system is the sole source of truth.
type Client struct {
	baseURL   string
	username  string
	password  string
	profileID string
	retryable *retryablehttp.Client
	limiter   *rate.Limiter
	logger    logger.Logger
}

// NewClient creates an admin API client with a pooled transport.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("admin API base URL must not be empty")
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

	retryable := retryablehttp.NewClient()
	retryable.HTTPClient = httpClient
	retryable.RetryMax = cfg.MaxRetries
	retryable.Logger = nil
	// Hand back the final response instead of swallowing it when the
	// retry budget is exhausted, so error statuses reach the caller.
	retryable.ErrorHandler = retryablehttp.PassthroughErrorHandler

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		username:  cfg.Username,
		password:  cfg.Password,
		profileID: cfg.ProfileID,
		retryable: retryable,
		limiter:   cfg.Limiter,
		logger:    log,
	}, nil
}

// Upsert creates or fully replaces the client record keyed by clientID.
func (c *Client) Upsert(ctx context.Context, clientID string, client *registration.CanonicalClient) error {
	body, err := json.Marshal(client.RestconfDocument())
	if err != nil {
		return fmt.Errorf("failed to encode client document: %w", err)
	}

	c.logger.Debug("submitting client registration upstream",
		logger.String("client_id", clientID),
	)

	return c.do(ctx, http.MethodPut, clientID, body)
}

// Delete removes the client record keyed by clientID.
func (c *Client) Delete(ctx context.Context, clientID string) error {
	c.logger.Debug("deleting client registration upstream",
		logger.String("client_id", clientID),
	)

	return c.do(ctx, http.MethodDelete, clientID, nil)
}

func (c *Client) do(ctx context.Context, method, clientID string, body []byte) error {
	endpoint := c.clientEndpoint(clientID)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build admin API request: %w", err)
	}
	req.Header.Set("Content-Type", yangDataJSON)
	req.Header.Set("Accept", yangDataJSON)
	req.Header.Set("X-Request-Id", requestID(ctx))
	req.SetBasicAuth(c.username, c.password)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	resp, err := c.retryable.Do(req)
	if err != nil {
		c.logger.Error("admin API call failed",
			logger.String("method", method),
			logger.String("client_id", clientID),
			logger.Err(err),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.logger.Warn("admin API rejected request",
			logger.String("method", method),
			logger.String("client_id", clientID),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(respBody)),
		)
		return &RejectedError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        string(respBody),
		}
	}

	// Drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyLen))

	return nil
}

// clientEndpoint builds the RESTCONF resource URL for one client. The
// client id is path-escaped: it originated in a URL path segment and may
// contain reserved characters.
func (c *Client) clientEndpoint(clientID string) string {
	return fmt.Sprintf(clientEndpointFormat, c.baseURL, url.PathEscape(c.profileID), url.PathEscape(clientID))
}

// requestID reuses the inbound request id when the router attached one,
// falling back to a fresh UUID for calls made outside a request.
func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
