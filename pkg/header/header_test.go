package header

import "testing"

func TestCaseInsensitiveRoundTrip(t *testing.T) {
	m := New()
	m.Set("Content-Type", "text/plain")
	for _, key := range []string{"content-type", "CONTENT-TYPE", "Content-Type"} {
		if v := m.Value(key); v != "text/plain" {
			t.Fatalf("key %q: got %q", key, v)
		}
	}
}

func TestLastWins(t *testing.T) {
	m := New()
	m.Set("X-Test", "first")
	m.Set("x-test", "second")
	if v := m.Value("X-TEST"); v != "second" {
		t.Fatalf("expected last-wins, got %q", v)
	}
}

func TestReadOnlyMapReflectsSource(t *testing.T) {
	m := New()
	m.Set("A", "1")
	ro := m.ReadOnly()
	if !ro.Has("a") {
		t.Fatalf("expected read-only view to see key")
	}
	if ro.Len() != 1 {
		t.Fatalf("expected len 1, got %d", ro.Len())
	}
}

func TestLastTokenChunked(t *testing.T) {
	cases := map[string]string{
		"chunked":             "chunked",
		"gzip, chunked":       "chunked",
		"chunked, gzip":       "gzip",
		"  gzip , chunked  ":  "chunked",
	}
	for in, want := range cases {
		if got := LastToken(in); got != want {
			t.Fatalf("LastToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCookieHeaderTrimsWhitespace(t *testing.T) {
	cookies, err := ParseCookieHeader("a=1; b = 2 ;  c=3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		if cookies[k] != v {
			t.Fatalf("cookie %q: got %q, want %q", k, cookies[k], v)
		}
	}
}

func TestParseCookieHeaderRejectsMissingEquals(t *testing.T) {
	if _, err := ParseCookieHeader("bareflag"); err == nil {
		t.Fatalf("expected error for cookie pair without '='")
	}
}

func TestCookieStringPromotesSecureForSameSiteNone(t *testing.T) {
	c := NewCookie("session", "abc")
	c.SameSite = SameSiteNone
	s := c.String()
	if !contains(s, "Secure") {
		t.Fatalf("expected Secure in %q", s)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
