package server

import (
	"testing"
	"time"

	"github.com/caldervale/go-rawhttpd/pkg/budget"
	"github.com/caldervale/go-rawhttpd/pkg/header"
	"github.com/caldervale/go-rawhttpd/pkg/httperr"
	"github.com/caldervale/go-rawhttpd/pkg/httpmsg"
	"github.com/caldervale/go-rawhttpd/pkg/response"
)

func newTestServer(t *testing.T, h Handler) *Server {
	t.Helper()
	return New(Options{
		Addr:       ":0",
		Handler:    h,
		SessionTTL: time.Minute,
		Limits:     budget.DefaultLimits(),
	})
}

func newTestRequest(cookies map[string]string) *httpmsg.Request {
	return &httpmsg.Request{
		Protocol: "HTTP/1.1",
		Method:   "GET",
		Route:    "/",
		Headers:  header.New(),
		Cookies:  cookies,
	}
}

func TestDispatchCreatesSessionWhenHandlerPopulatesIt(t *testing.T) {
	s := newTestServer(t, HandlerFunc(func(ctx *Context) *response.Response {
		ctx.Session["user"] = "alice"
		return response.New(200)
	}))
	req := newTestRequest(map[string]string{})
	resp := s.dispatch(req)

	if len(resp.Cookies) != 1 || resp.Cookies[0].Name != sessionCookieName {
		t.Fatalf("expected a Session cookie, got %#v", resp.Cookies)
	}
	if s.sessions.Len() != 1 {
		t.Fatalf("expected one stored session")
	}
}

func TestDispatchNoSessionWhenUntouched(t *testing.T) {
	s := newTestServer(t, HandlerFunc(func(ctx *Context) *response.Response {
		return response.New(200)
	}))
	req := newTestRequest(map[string]string{})
	resp := s.dispatch(req)

	if len(resp.Cookies) != 0 {
		t.Fatalf("expected no cookies, got %#v", resp.Cookies)
	}
}

func TestDispatchDeletesSessionWhenEmptied(t *testing.T) {
	s := newTestServer(t, HandlerFunc(func(ctx *Context) *response.Response {
		return response.New(200)
	}))
	token, err := s.sessions.Add(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	handler := HandlerFunc(func(ctx *Context) *response.Response {
		delete(ctx.Session, "a")
		return response.New(200)
	})
	s.opts.Handler = handler

	req := newTestRequest(map[string]string{sessionCookieName: token})
	_ = s.dispatch(req)

	if s.sessions.Has(token) {
		t.Fatalf("expected session to be deleted after emptying")
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	s := newTestServer(t, HandlerFunc(func(ctx *Context) *response.Response {
		panic("boom")
	}))
	req := newTestRequest(map[string]string{})
	resp := s.dispatch(req)
	if resp.Status != 500 {
		t.Fatalf("expected 500 after panic, got %d", resp.Status)
	}
}

func TestDispatchPanicWithHttpErrorSurfacesItsOwnStatus(t *testing.T) {
	s := newTestServer(t, HandlerFunc(func(ctx *Context) *response.Response {
		panic(httperr.NewNotFound("handler.route", "no such widget"))
	}))
	req := newTestRequest(map[string]string{})
	resp := s.dispatch(req)
	if resp.Status != 404 {
		t.Fatalf("expected the panicked HttpError's own status 404, got %d", resp.Status)
	}
}

func TestDispatchNilResponseBecomesInternalError(t *testing.T) {
	s := newTestServer(t, HandlerFunc(func(ctx *Context) *response.Response {
		return nil
	}))
	req := newTestRequest(map[string]string{})
	resp := s.dispatch(req)
	if resp.Status != 500 {
		t.Fatalf("expected 500 for nil response, got %d", resp.Status)
	}
}
