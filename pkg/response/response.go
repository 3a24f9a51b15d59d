// Package response implements the Response Writer: building an
// HttpResponse-equivalent value, canonicalizing and ordering its headers,
// and serializing it to a connection as a sized or chunked body. Grounded
// on original_source/mhttp/messages.py (HttpResponse) and
// original_source/mhttp/socket_wrapper.py (ServerSocketWrapper.send_response,
// _send, _send_chunked).
package response

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/caldervale/go-rawhttpd/pkg/header"
	"github.com/caldervale/go-rawhttpd/pkg/httperr"
	"github.com/caldervale/go-rawhttpd/pkg/sock"
)

const defaultChunkSize = 1024

// Config controls the header-ordering groups spec.md §4.7 prescribes:
// a "first" set emitted right after the status line, then every other
// header, then Set-Cookie lines, then a "last" set.
type Config struct {
	FirstSet []string
	LastSet  []string
}

// DefaultConfig returns spec.md's default ordering groups.
func DefaultConfig() Config {
	return Config{
		FirstSet: []string{"Server"},
		LastSet: []string{
			"Trailer", "Content-Disposition", "Content-Type",
			"Transfer-Encoding", "Content-Language", "Content-Location",
			"Content-Length",
		},
	}
}

// Response is a mutable, in-progress HTTP response. Build one with New,
// populate it with SetBody/SetBodyChunked/AddCookie/Headers, then Write it
// to a connection.
type Response struct {
	Protocol string
	Status   int
	Headers  *header.Map
	Cookies  []*header.Cookie

	body      io.Reader
	bodySize  int64
	chunkSize int
}

// New creates a Response with the given status code and an empty header
// set. Protocol must be set by the caller before Write (the Connection
// Loop sets it to HTTP/1.1).
func New(status int) *Response {
	return &Response{Status: status, Headers: header.New()}
}

// SetBody attaches a body of known length, clearing any chunked framing
// previously set and writing Content-Length.
func (r *Response) SetBody(body io.Reader, size int64) {
	r.Headers.Del("Transfer-Encoding")
	r.chunkSize = 0
	r.body = body
	r.bodySize = size
	r.Headers.Set("Content-Length", strconv.FormatInt(size, 10))
}

// SetBodyChunked attaches a body to be streamed in chunkSize pieces
// (defaulting to 1024), appending "chunked" to any existing
// Transfer-Encoding token list and dropping Content-Length.
func (r *Response) SetBodyChunked(body io.Reader, chunkSize int) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	r.Headers.Del("Content-Length")
	r.body = body
	r.chunkSize = chunkSize
	if te := r.Headers.Value("Transfer-Encoding"); te != "" {
		r.Headers.Set("Transfer-Encoding", strings.TrimSpace(te)+", chunked")
	} else {
		r.Headers.Set("Transfer-Encoding", "chunked")
	}
}

// IsChunked reports whether the response body is framed as chunked.
func (r *Response) IsChunked() bool { return r.chunkSize > 0 }

// Body returns the attached body reader, or nil if none was set.
func (r *Response) Body() io.Reader { return r.body }

// AddCookie appends a Set-Cookie line.
func (r *Response) AddCookie(c *header.Cookie) {
	r.Cookies = append(r.Cookies, c)
}

// SetKeepAlive sets the Connection header.
func (r *Response) SetKeepAlive(keepAlive bool) {
	if keepAlive {
		r.Headers.Set("Connection", "Keep-Alive")
	} else {
		r.Headers.Set("Connection", "Close")
	}
}

// KeepAlive reports the Connection header's value, defaulting to true
// (HTTP/1.1's keep-alive-by-default) when unset.
func (r *Response) KeepAlive() bool {
	v := r.Headers.Value("Connection")
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "keep-alive")
}

// headerString renders the status line and every header/cookie line,
// ending with the blank line that terminates the header section.
func (r *Response) headerString(cfg Config) ([]byte, error) {
	if r.Protocol == "" {
		return nil, fmt.Errorf("response: protocol not set")
	}
	if !httperr.Registered(r.Status) {
		return nil, fmt.Errorf("response: unregistered status code %d", r.Status)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s\r\n", r.Protocol, r.Status, httperr.ReasonPhrase(r.Status))

	inFirst := toLowerSet(cfg.FirstSet)
	inLast := toLowerSet(cfg.LastSet)

	for _, name := range cfg.FirstSet {
		if v, ok := r.Headers.Get(name); ok {
			writeHeaderLine(&buf, name, v)
		}
	}

	keys := r.Headers.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		lk := strings.ToLower(k)
		if inFirst[lk] || inLast[lk] {
			continue
		}
		v, _ := r.Headers.Get(k)
		writeHeaderLine(&buf, k, v)
	}

	for _, c := range r.Cookies {
		buf.WriteString("Set-Cookie: ")
		buf.WriteString(c.String())
		buf.WriteString("\r\n")
	}

	for _, name := range cfg.LastSet {
		if v, ok := r.Headers.Get(name); ok {
			writeHeaderLine(&buf, name, v)
		}
	}

	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func writeHeaderLine(buf *bytes.Buffer, name, value string) {
	buf.WriteString(canonicalizeHeaderName(name))
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func toLowerSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = true
	}
	return m
}

// canonicalizeHeaderName renders a header name as Title-Case-With-Hyphens,
// e.g. "content-type" -> "Content-Type". Grounded on
// original_source/mhttp/messages.py's _capitalize_header.
func canonicalizeHeaderName(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

// Write serializes the response to s under cfg's header-ordering groups:
// the header section first, then the body framed as sized or chunked.
func Write(s *sock.Socket, r *Response, cfg Config) error {
	head, err := r.headerString(cfg)
	if err != nil {
		return err
	}
	if err := s.Send(head); err != nil {
		return err
	}
	if r.body == nil {
		return nil
	}
	if r.IsChunked() {
		return writeChunked(s, r.body, r.chunkSize)
	}
	return writeFixed(s, r.body, r.bodySize)
}

func writeFixed(s *sock.Socket, body io.Reader, size int64) error {
	remaining := size
	buf := make([]byte, defaultChunkSize)
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := body.Read(buf[:n])
		if read > 0 {
			if sendErr := s.Send(buf[:read]); sendErr != nil {
				return sendErr
			}
			remaining -= int64(read)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// writeChunked streams body in chunkSize pieces, each framed as a
// hex-length line followed by the chunk data and a trailing CRLF,
// terminated by a zero-length chunk. Grounded on
// original_source/mhttp/socket_wrapper.py's _send_chunked; no trailer
// support, matching the original.
func writeChunked(s *sock.Socket, body io.Reader, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if frameErr := sendChunkFrame(s, buf[:n]); frameErr != nil {
				return frameErr
			}
		}
		if err != nil {
			if err == io.EOF {
				return sendChunkFrame(s, nil)
			}
			return err
		}
		if n == 0 {
			return sendChunkFrame(s, nil)
		}
	}
}

func sendChunkFrame(s *sock.Socket, data []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%x\r\n", len(data))
	buf.Write(data)
	buf.WriteString("\r\n")
	return s.Send(buf.Bytes())
}
