package httpmsg

import (
	"net"
	"testing"
	"time"

	"github.com/caldervale/go-rawhttpd/pkg/budget"
	"github.com/caldervale/go-rawhttpd/pkg/sock"
)

func readRequestFrom(t *testing.T, raw string) *Request {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	s := sock.New(server)
	s.Timeout = time.Second
	go func() {
		_, _ = client.Write([]byte(raw))
	}()

	bud := budget.New(budget.DefaultLimits())
	req, err := ReadRequest(s, bud, Options{
		Limits:         budget.DefaultLimits(),
		BodyMaxMemSize: 4096,
		TempDir:        t.TempDir(),
	})
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	return req
}

func TestReadRequestSimpleGet(t *testing.T) {
	req := readRequestFrom(t, "GET /hi?x=1&y=2 HTTP/1.1\r\nHost: h\r\n\r\n")
	if req.Method != "GET" || req.Route != "/hi" {
		t.Fatalf("unexpected method/route: %s %s", req.Method, req.Route)
	}
	if req.Query["x"] != "1" || req.Query["y"] != "2" {
		t.Fatalf("unexpected query: %#v", req.Query)
	}
	if req.Body != nil {
		t.Fatalf("expected nil body")
	}
}

func TestReadRequestFixedBody(t *testing.T) {
	req := readRequestFrom(t, "POST /submit HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello")
	if req.Body == nil {
		t.Fatalf("expected body")
	}
	data, err := req.Body.Data()
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected body data %q err %v", data, err)
	}
}

func TestReadRequestChunkedBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	req := readRequestFrom(t, raw)
	if req.Body == nil {
		t.Fatalf("expected body")
	}
	data, err := req.Body.Data()
	if err != nil || string(data) != "hello world" {
		t.Fatalf("unexpected chunked body %q err %v", data, err)
	}
}

func TestReadRequestCookieHeaderMerged(t *testing.T) {
	req := readRequestFrom(t, "GET / HTTP/1.1\r\nHost: h\r\nCookie: a=1; b=2\r\n\r\n")
	if req.Cookies["a"] != "1" || req.Cookies["b"] != "2" {
		t.Fatalf("unexpected cookies: %#v", req.Cookies)
	}
}

func TestReadRequestRejectsBadMethod(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	s := sock.New(server)
	s.Timeout = time.Second
	go func() {
		_, _ = client.Write([]byte("FOO / HTTP/1.1\r\n\r\n"))
	}()
	bud := budget.New(budget.DefaultLimits())
	_, err := ReadRequest(s, bud, Options{BodyMaxMemSize: 1024, TempDir: t.TempDir()})
	if err == nil {
		t.Fatalf("expected error for invalid method")
	}
}
