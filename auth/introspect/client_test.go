package introspect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Endpoint:     endpoint,
		ClientID:     "bridge-client",
		ClientSecret: "bridge-secret",
		VerifyTLS:    false,
		Timeout:      2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestIntrospect_ActiveToken(t *testing.T) {
	var gotToken, gotUser, gotPass string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotToken = r.PostFormValue("token")
		gotUser, gotPass, _ = r.BasicAuth()

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"active": true, "scope": "read write", "exp": 1999999999}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	result, err := client.Introspect(context.Background(), "opaque-token")
	require.NoError(t, err)

	assert.Equal(t, "opaque-token", gotToken)
	assert.Equal(t, "bridge-client", gotUser)
	assert.Equal(t, "bridge-secret", gotPass)

	assert.True(t, result.Active)
	assert.Equal(t, []string{"read", "write"}, result.Scopes)
	assert.Equal(t, time.Unix(1999999999, 0), result.ExpiresAt)
}

func TestIntrospect_InactiveToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RFC 7662: an unknown or revoked token still answers 200
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"active": false}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	result, err := client.Introspect(context.Background(), "revoked")
	require.NoError(t, err)
	assert.False(t, result.Active)
	assert.Empty(t, result.Scopes)
}

func TestIntrospect_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	_, err := client.Introspect(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIntrospect_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := newTestClient(t, ts.URL)

	_, err := client.Introspect(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIntrospect_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`not json at all`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)

	_, err := client.Introspect(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestResult_SatisfiesAnyScope(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		required []string
		expected bool
	}{
		{
			name:     "inactive never satisfies",
			result:   Result{Active: false, Scopes: []string{"read"}},
			required: nil,
			expected: false,
		},
		{
			name:     "empty required list means authentication only",
			result:   Result{Active: true},
			required: nil,
			expected: true,
		},
		{
			name:     "one overlapping scope suffices",
			result:   Result{Active: true, Scopes: []string{"read", "write"}},
			required: []string{"admin", "write"},
			expected: true,
		},
		{
			name:     "disjoint scopes fail",
			result:   Result{Active: true, Scopes: []string{"read"}},
			required: []string{"admin"},
			expected: false,
		},
		{
			name:     "active token with no scopes fails a scoped check",
			result:   Result{Active: true},
			required: []string{"admin"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.SatisfiesAnyScope(tt.required))
		})
	}
}
