package header

import (
	"fmt"
	"strings"
	"time"
)

// SameSite enumerates the SameSite cookie attribute values.
type SameSite int

const (
	SameSiteDefault SameSite = iota
	SameSiteLax
	SameSiteStrict
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteLax:
		return "Lax"
	case SameSiteStrict:
		return "Strict"
	case SameSiteNone:
		return "None"
	default:
		return ""
	}
}

// Cookie is an outgoing Set-Cookie value, per spec.md §3. SameSite=None
// requires Secure; String enforces this invariant when rendering, whatever
// the fields were set to.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Expires  time.Time // zero value means no Expires attribute
	MaxAge   *int64    // nil means no Max-Age attribute
	HttpOnly bool
	Secure   bool
	SameSite SameSite
	Domain   string
}

// NewCookie returns a Cookie with name/value set and Path defaulted to "/".
func NewCookie(name, value string) *Cookie {
	return &Cookie{Name: name, Value: value, Path: "/"}
}

// String renders the Set-Cookie header value. SameSite=None without Secure
// is promoted to Secure automatically rather than emitting a cookie modern
// browsers would reject outright.
func (c *Cookie) String() string {
	secure := c.Secure || c.SameSite == SameSiteNone

	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s", c.Name, c.Value)
	if c.Path != "" {
		fmt.Fprintf(&b, "; Path=%s", c.Path)
	}
	if c.Domain != "" {
		fmt.Fprintf(&b, "; Domain=%s", c.Domain)
	}
	if !c.Expires.IsZero() {
		fmt.Fprintf(&b, "; Expires=%s", c.Expires.UTC().Format(time.RFC1123))
	}
	if c.MaxAge != nil {
		fmt.Fprintf(&b, "; Max-Age=%d", *c.MaxAge)
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if secure {
		b.WriteString("; Secure")
	}
	if s := c.SameSite.String(); s != "" {
		fmt.Fprintf(&b, "; SameSite=%s", s)
	}
	return b.String()
}

// ParseCookieHeader parses a request's Cookie header value into a
// name→value map, splitting strictly on ";" and trimming whitespace on
// both sides of "=" and ";" — per SPEC_FULL.md §7 (cookie whitespace
// resolution) — matching original_source/mhttp/socket_wrapper.py's
// split_two(content, ';') / split_two(pair, '=') behavior.
func ParseCookieHeader(value string) (map[string]string, error) {
	cookies := make(map[string]string)
	if strings.TrimSpace(value) == "" {
		return cookies, nil
	}
	for _, part := range strings.Split(value, ";") {
		name, val, ok := splitStrict(part, "=")
		if !ok {
			return nil, fmt.Errorf("header: malformed cookie pair %q", part)
		}
		cookies[name] = val
	}
	return cookies, nil
}

// splitStrict splits s on the first occurrence of sep, trims both sides,
// and reports whether sep was found with a non-empty name before it. Any
// later occurrences of sep stay in the value.
func splitStrict(s, sep string) (string, string, bool) {
	idx := strings.Index(s, sep)
	if idx < 0 {
		return "", "", false
	}
	name := strings.TrimSpace(s[:idx])
	val := strings.TrimSpace(s[idx+len(sep):])
	if name == "" {
		return "", "", false
	}
	return name, val, true
}
