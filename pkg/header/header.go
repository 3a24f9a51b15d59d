// Package header provides the case-insensitive header map shared by
// requests and responses, plus a read-only view wrapper and the Cookie
// value type. Field-name/value validation is delegated to
// golang.org/x/net/http/httpguts, the same package net/http itself uses
// for RFC 7230 token and field-value checks.
package header

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Map is a case-insensitive string-keyed map, one value per key, with last-wins semantics
// per spec.md §4.4 ("duplicate headers: last-wins"). Keys are lowercased on
// every operation; canonicalization to Title-Case-With-Hyphens happens only
// at emission time (pkg/response), not on this type.
type Map struct {
	values map[string]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{values: make(map[string]string)}
}

func lower(key string) string { return strings.ToLower(key) }

// Set stores value under key, replacing any prior value (last-wins).
func (m *Map) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[lower(key)] = value
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[lower(key)]
	return v, ok
}

// Value returns the value for key, or "" if absent.
func (m *Map) Value(key string) string {
	return m.values[lower(key)]
}

// Del removes key.
func (m *Map) Del(key string) {
	delete(m.values, lower(key))
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.values[lower(key)]
	return ok
}

// Len returns the number of stored keys.
func (m *Map) Len() int { return len(m.values) }

// Keys returns the stored keys in no particular order, per spec.md §3
// ("Insertion order irrelevant").
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// ReadOnly returns an unmodifiable view over m, per spec.md §9's
// "Read-only map view" redesign note.
func (m *Map) ReadOnly() *ReadOnlyMap {
	return &ReadOnlyMap{m: m}
}

// ValidName reports whether key is a syntactically valid HTTP header field
// name (RFC 7230 token).
func ValidName(key string) bool {
	return httpguts.ValidHeaderFieldName(key)
}

// ValidValue reports whether value is free of control characters
// disallowed in a header field value.
func ValidValue(value string) bool {
	return httpguts.ValidHeaderFieldValue(value)
}

// ContainsToken reports whether token appears anywhere as a comma-separated
// token in value, case-insensitively. The Transfer-Encoding chunked rule
// does not use it; that rule looks only at the last token (see LastToken).
func ContainsToken(value, token string) bool {
	return httpguts.HeaderValuesContainsToken([]string{value}, token)
}

// LastToken returns the last comma-separated, whitespace-trimmed token in
// value, lowercased. Used to implement the Transfer-Encoding chunked rule.
func LastToken(value string) string {
	parts := strings.Split(value, ",")
	if len(parts) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
}

// ReadOnlyMap is an unmodifiable view over a Map. Cheap to construct; never
// copies the underlying storage.
type ReadOnlyMap struct {
	m *Map
}

// Get returns the value for key and whether it was present.
func (r *ReadOnlyMap) Get(key string) (string, bool) {
	if r.m == nil {
		return "", false
	}
	return r.m.Get(key)
}

// Value returns the value for key, or "" if absent.
func (r *ReadOnlyMap) Value(key string) string {
	if r.m == nil {
		return ""
	}
	return r.m.Value(key)
}

// Has reports whether key is present.
func (r *ReadOnlyMap) Has(key string) bool {
	if r.m == nil {
		return false
	}
	return r.m.Has(key)
}

// Len returns the number of stored keys.
func (r *ReadOnlyMap) Len() int {
	if r.m == nil {
		return 0
	}
	return r.m.Len()
}

// Keys returns the stored keys in no particular order.
func (r *ReadOnlyMap) Keys() []string {
	if r.m == nil {
		return nil
	}
	return r.m.Keys()
}
