package intake

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// Document is a generic string-keyed JSON object with type-safe accessors.
// Registration payloads arrive with inconsistent field naming across client
// implementations, so every accessor is permissive: absent fields report
// ok=false and callers substitute a default rather than failing.
type Document struct {
	Raw map[string]interface{}
}

// Decode reads a JSON object from r into a Document. Anything other than a
// well-formed JSON object is an error; field contents are not validated
// beyond that.
func Decode(r io.Reader) (*Document, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("request body is not a JSON object: %w", err)
	}
	// A JSON null decodes into a nil map without error
	if raw == nil {
		return nil, fmt.Errorf("request body is not a JSON object: null")
	}
	return &Document{Raw: raw}, nil
}

// GetString returns the string value of field k. Non-string scalars are
// weakly coerced the way the raw JSON decoder produced them.
func (d *Document) GetString(k string) (string, bool) {
	raw, ok := d.Raw[k]
	if !ok || raw == nil {
		return "", false
	}
	var result string
	if err := mapstructure.WeakDecode(raw, &result); err != nil {
		return "", false
	}
	return result, true
}

// GetBool returns the boolean value of field k.
func (d *Document) GetBool(k string) (bool, bool) {
	raw, ok := d.Raw[k]
	if !ok || raw == nil {
		return false, false
	}
	var result bool
	if err := mapstructure.WeakDecode(raw, &result); err != nil {
		return false, false
	}
	return result, true
}

// GetStringSlice returns the string-slice value of field k, trimmed.
func (d *Document) GetStringSlice(k string) ([]string, bool) {
	raw, ok := d.Raw[k]
	if !ok || raw == nil {
		return nil, false
	}
	var result []string
	if err := mapstructure.WeakDecode(raw, &result); err != nil {
		return nil, false
	}
	return strutil.TrimStrings(result), true
}

// GetFirstString returns the value of the first present key, in order.
// This is the resolution rule for fields that arrive under more than one
// naming convention (e.g. "clientId" vs "client_id").
func (d *Document) GetFirstString(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := d.GetString(k); ok {
			return v, true
		}
	}
	return "", false
}

// GetFirstStringSlice returns the slice value of the first present key.
func (d *Document) GetFirstStringSlice(keys ...string) ([]string, bool) {
	for _, k := range keys {
		if v, ok := d.GetStringSlice(k); ok {
			return v, true
		}
	}
	return nil, false
}

// StringOrDefault returns the value of k or def when absent.
func (d *Document) StringOrDefault(k, def string) string {
	if v, ok := d.GetString(k); ok {
		return v
	}
	return def
}

// BoolOrDefault returns the value of k or def when absent.
func (d *Document) BoolOrDefault(k string, def bool) bool {
	if v, ok := d.GetBool(k); ok {
		return v
	}
	return def
}
