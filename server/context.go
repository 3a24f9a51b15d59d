package server

import (
	"github.com/caldervale/go-rawhttpd/pkg/httpmsg"
	"github.com/caldervale/go-rawhttpd/pkg/response"
)

// Context bundles an incoming Request with its mutable session view, the
// handler's only input. Grounded on original_source/mhttp/context.py's
// HttpContext. Session is never nil: when the request carried no
// recognized session cookie it is an empty map, and a handler starts a
// session by adding entries to it.
type Context struct {
	Request *httpmsg.Request
	Session map[string]any
}

// Handler answers one request. Returning a nil response is a programmer
// error the Connection Loop treats as an internal server error.
type Handler interface {
	Handle(ctx *Context) *response.Response
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx *Context) *response.Response

// Handle calls f(ctx).
func (f HandlerFunc) Handle(ctx *Context) *response.Response { return f(ctx) }
