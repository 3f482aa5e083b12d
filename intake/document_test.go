package intake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name: "valid object",
			body: `{"name": "app"}`,
		},
		{
			name: "empty object",
			body: `{}`,
		},
		{
			name:        "array is rejected",
			body:        `["a", "b"]`,
			expectError: true,
		},
		{
			name:        "scalar is rejected",
			body:        `"just a string"`,
			expectError: true,
		},
		{
			name:        "null is rejected",
			body:        `null`,
			expectError: true,
		},
		{
			name:        "truncated body is rejected",
			body:        `{"name":`,
			expectError: true,
		},
		{
			name:        "empty body is rejected",
			body:        ``,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(strings.NewReader(tt.body))
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, doc.Raw)
			}
		})
	}
}

func TestDocument_GetString(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"name": "app", "count": 3, "nothing": null}`))
	require.NoError(t, err)

	v, ok := doc.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "app", v)

	// Weak coercion turns scalars into their string form
	v, ok = doc.GetString("count")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	_, ok = doc.GetString("absent")
	assert.False(t, ok)

	// Explicit null counts as absent
	_, ok = doc.GetString("nothing")
	assert.False(t, ok)
}

func TestDocument_GetBool(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"enabled": true, "flag": "false"}`))
	require.NoError(t, err)

	v, ok := doc.GetBool("enabled")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = doc.GetBool("flag")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = doc.GetBool("absent")
	assert.False(t, ok)
}

func TestDocument_GetStringSlice(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"uris": [" https://a ", "https://b"], "empty": []}`))
	require.NoError(t, err)

	v, ok := doc.GetStringSlice("uris")
	assert.True(t, ok)
	assert.Equal(t, []string{"https://a", "https://b"}, v)

	v, ok = doc.GetStringSlice("empty")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = doc.GetStringSlice("absent")
	assert.False(t, ok)
}

func TestDocument_GetFirstString(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"client_id": "snake"}`))
	require.NoError(t, err)

	v, ok := doc.GetFirstString("clientId", "client_id")
	assert.True(t, ok)
	assert.Equal(t, "snake", v)

	_, ok = doc.GetFirstString("a", "b", "c")
	assert.False(t, ok)
}

func TestDocument_Defaults(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"description": "set"}`))
	require.NoError(t, err)

	assert.Equal(t, "set", doc.StringOrDefault("description", "fallback"))
	assert.Equal(t, "fallback", doc.StringOrDefault("absent", "fallback"))
	assert.True(t, doc.BoolOrDefault("absent", true))
	assert.False(t, doc.BoolOrDefault("absent", false))
}
