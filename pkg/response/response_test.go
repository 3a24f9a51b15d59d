package response

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/caldervale/go-rawhttpd/pkg/header"
	"github.com/caldervale/go-rawhttpd/pkg/sock"
)

func writeAndCapture(t *testing.T, r *Response, cfg Config) string {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	s := sock.New(server)
	s.Timeout = time.Second

	done := make(chan []byte, 1)
	go func() {
		var buf bytes.Buffer
		tmp := make([]byte, 4096)
		for {
			n, err := client.Read(tmp)
			if n > 0 {
				buf.Write(tmp[:n])
			}
			if err != nil {
				done <- buf.Bytes()
				return
			}
		}
	}()

	if err := Write(s, r, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	server.Close()
	return string(<-done)
}

func TestWriteFixedBodyOrdersHeaders(t *testing.T) {
	r := New(200)
	r.Protocol = "HTTP/1.1"
	r.Headers.Set("X-Custom", "v")
	r.Headers.Set("Server", "testd")
	r.AddCookie(header.NewCookie("sid", "abc"))
	r.SetBody(strings.NewReader("hello"), 5)

	out := writeAndCapture(t, r, DefaultConfig())
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", out)
	}
	serverIdx := strings.Index(out, "Server: testd\r\n")
	customIdx := strings.Index(out, "X-Custom: v\r\n")
	cookieIdx := strings.Index(out, "Set-Cookie: sid=abc")
	lengthIdx := strings.Index(out, "Content-Length: 5\r\n")
	if serverIdx == -1 || customIdx == -1 || cookieIdx == -1 || lengthIdx == -1 {
		t.Fatalf("missing expected header lines: %q", out)
	}
	if !(serverIdx < customIdx && customIdx < cookieIdx && cookieIdx < lengthIdx) {
		t.Fatalf("headers out of order: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello") {
		t.Fatalf("unexpected body trailer: %q", out)
	}
}

func TestWriteChunkedBody(t *testing.T) {
	r := New(200)
	r.Protocol = "HTTP/1.1"
	r.SetBodyChunked(strings.NewReader("abcde"), 2)

	out := writeAndCapture(t, r, DefaultConfig())
	if !strings.Contains(out, "Transfer-Encoding: Chunked\r\n") && !strings.Contains(out, "Transfer-Encoding: chunked\r\n") {
		t.Fatalf("missing transfer-encoding header: %q", out)
	}
	wantBody := "2\r\nab\r\n2\r\ncd\r\n1\r\ne\r\n0\r\n\r\n"
	if !strings.HasSuffix(out, wantBody) {
		t.Fatalf("unexpected chunked framing: %q", out)
	}
}

func TestMakeResponseString(t *testing.T) {
	resp, err := Make("hi", nil, 200)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if resp.Headers.Value("Content-Type") != "text/plain" {
		t.Fatalf("unexpected content type: %s", resp.Headers.Value("Content-Type"))
	}
}

func TestMakeResponseJSON(t *testing.T) {
	resp, err := Make(map[string]any{"a": 1}, nil, 201)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if resp.Status != 201 || resp.Headers.Value("Content-Type") != "application/json" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestCanonicalizeHeaderName(t *testing.T) {
	if got := canonicalizeHeaderName("content-type"); got != "Content-Type" {
		t.Fatalf("unexpected canonicalization: %s", got)
	}
}
