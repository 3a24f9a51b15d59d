// Package server implements the Connection Loop and Listener: accepting
// TCP (and optionally TLS) connections, reading one request at a time off
// each, dispatching it to a Handler alongside its session, and writing
// back the response, repeating until the connection closes or the
// request or response asks to close it. Grounded on
// original_source/mhttp/server.py's HttpServer (handle_client,
// handle_request, run) and on the teacher's pkg/tlsconfig for TLS setup.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caldervale/go-rawhttpd/pkg/budget"
	"github.com/caldervale/go-rawhttpd/pkg/constants"
	"github.com/caldervale/go-rawhttpd/pkg/header"
	"github.com/caldervale/go-rawhttpd/pkg/httperr"
	"github.com/caldervale/go-rawhttpd/pkg/httpmsg"
	"github.com/caldervale/go-rawhttpd/pkg/response"
	"github.com/caldervale/go-rawhttpd/pkg/sessionstore"
	"github.com/caldervale/go-rawhttpd/pkg/sock"
	"github.com/caldervale/go-rawhttpd/pkg/tlsconfig"
)

const protocolHTTP11 = "HTTP/1.1"

// sessionCookieName is the cookie the Connection Loop uses to carry the
// session token, matching original_source/mhttp/server.py's 'Session'.
const sessionCookieName = "Session"

// Options configures a Server.
type Options struct {
	// Addr, if non-empty, is the plaintext listen address (e.g. ":8080").
	Addr string
	// TLSAddr, if non-empty, is the TLS listen address. CertFile/KeyFile
	// are required when set.
	TLSAddr           string
	CertFile, KeyFile string
	TLSProfile        tlsconfig.VersionProfile

	Handler    Handler
	Logger     func(error)
	ServerName string

	SessionTTL     time.Duration
	Limits         budget.Limits
	BodyMaxMemSize int64
	TempDir        string
	ResponseConfig response.Config
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = func(err error) { fmt.Println(err) }
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 20 * time.Minute
	}
	if o.Limits == (budget.Limits{}) {
		o.Limits = budget.DefaultLimits()
	}
	if o.TLSProfile == (tlsconfig.VersionProfile{}) {
		o.TLSProfile = tlsconfig.ProfileSecure
	}
	if o.ResponseConfig.FirstSet == nil && o.ResponseConfig.LastSet == nil {
		o.ResponseConfig = response.DefaultConfig()
	}
	return o
}

// Server accepts connections and runs the Connection Loop over each.
type Server struct {
	opts     Options
	sessions *sessionstore.Store
}

// New creates a Server. Call Run to start accepting connections.
func New(opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{opts: opts, sessions: sessionstore.New(opts.SessionTTL)}
}

// Run listens on Options.Addr and/or Options.TLSAddr, serving connections
// until ctx is cancelled or a listener fails. The plain and TLS listeners
// run concurrently via errgroup, replacing
// original_source/mhttp/server.py's select.select-over-both-sockets loop.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	started := false

	if s.opts.Addr != "" {
		started = true
		g.Go(func() error { return s.servePlain(gctx) })
	}
	if s.opts.TLSAddr != "" {
		started = true
		g.Go(func() error { return s.serveTLS(gctx) })
	}
	if !started {
		return fmt.Errorf("server: no listen address configured")
	}
	return g.Wait()
}

func (s *Server) servePlain(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.acceptLoop(ctx, ln)
}

func (s *Server) serveTLS(ctx context.Context) error {
	cert, err := tls.LoadX509KeyPair(s.opts.CertFile, s.opts.KeyFile)
	if err != nil {
		return err
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"http/1.1"},
	}
	tlsconfig.ApplyVersionProfile(cfg, s.opts.TLSProfile)
	tlsconfig.ApplyCipherSuites(cfg, cfg.MinVersion)

	ln, err := tls.Listen("tcp", s.opts.TLSAddr, cfg)
	if err != nil {
		return err
	}
	return s.acceptLoop(ctx, ln)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConnection(conn)
	}
}

// handleConnection runs the per-connection loop: read one request, handle
// it, write the response, and repeat until an error, a closed connection,
// or a request or response that asks to close the connection. spec.md §4.8's
// happens-before guarantee (request N's body released before request N+1's
// first byte read) falls out naturally here: every step below runs
// sequentially on this one goroutine.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	sc := sock.New(conn)

	for {
		sc.Timeout = constants.DefaultIdleTimeout
		bud := budget.New(s.opts.Limits)

		req, err := httpmsg.ReadRequest(sc, bud, httpmsg.Options{
			Limits:         s.opts.Limits,
			BodyMaxMemSize: s.opts.BodyMaxMemSize,
			TempDir:        s.opts.TempDir,
		})
		if err != nil {
			// spec.md §4.8.a: an HttpError(code, msg) emits its own error
			// response with no log; anything else reaching here is a raw
			// transport error (translateSockErr passes non-timeout,
			// non-too-long socket errors through unchanged) — log it and
			// exit without attempting to write onto a dead connection.
			var httpErr *httperr.Error
			if errors.As(err, &httpErr) {
				s.writeError(sc, httpErr)
			} else {
				s.opts.Logger(err)
			}
			return
		}

		sc.Timeout = constants.DefaultConnTimeout
		resp := s.dispatch(req)
		req.Delete()

		writeErr := response.Write(sc, resp, s.opts.ResponseConfig)
		keepAlive := resp.KeepAlive() && req.KeepAlive()
		closeBody(resp)
		if writeErr != nil {
			s.opts.Logger(writeErr)
			return
		}
		if !keepAlive {
			return
		}
	}
}

// dispatch loads the request's session (if any), runs the handler, and
// reconciles the resulting session state: an emptied session is deleted,
// a session with no recognized or live token is assigned a fresh one and
// a Set-Cookie line, and an existing live session needs no further action
// since Context.Session is the same map the store holds — the handler's
// mutations are already visible to it. Grounded on
// original_source/mhttp/server.py's HttpServer.handle_request.
func (s *Server) dispatch(req *httpmsg.Request) *response.Response {
	token, hasToken := req.Cookies[sessionCookieName]
	var session map[string]any
	if hasToken {
		session = s.sessions.Get(token)
	}
	if session == nil {
		session = map[string]any{}
	}

	ctx := &Context{Request: req, Session: session}
	resp := s.safeHandle(ctx)
	resp.Protocol = protocolHTTP11
	if s.opts.ServerName != "" {
		resp.Headers.Set("Server", s.opts.ServerName)
	}

	switch {
	case len(ctx.Session) == 0:
		if hasToken {
			s.sessions.Delete(token)
		}
	case !hasToken || !s.sessions.Has(token):
		newToken, err := s.sessions.Add(ctx.Session)
		if err == nil {
			resp.AddCookie(sessionCookie(newToken))
		} else {
			s.opts.Logger(err)
		}
	}
	return resp
}

func sessionCookie(token string) *header.Cookie {
	c := header.NewCookie(sessionCookieName, token)
	c.HttpOnly = true
	return c
}

// safeHandle runs the handler, recovering a panic into a response. A
// panic carrying an *httperr.Error is the Handler's only channel for
// raising a typed error (Handle has no error return), so it surfaces its
// own status with no log, matching original_source/mhttp/server.py's
// handle_request: "except HttpError". Any other panic, or a nil
// response, is logged and converted to a 500, matching that function's
// fallback "except Exception" clause.
func (s *Server) safeHandle(ctx *Context) (resp *response.Response) {
	defer func() {
		if r := recover(); r != nil {
			if httpErr, ok := r.(*httperr.Error); ok {
				resp = s.errorResponse(httpErr)
				return
			}
			s.opts.Logger(fmt.Errorf("server: handler panic: %v", r))
			resp = s.errorResponse(httperr.NewInternal("server.dispatch", fmt.Errorf("%v", r)))
		}
	}()
	resp = s.opts.Handler.Handle(ctx)
	if resp == nil {
		resp = s.errorResponse(httperr.NewInternal("server.dispatch", fmt.Errorf("handler returned nil response")))
	}
	return resp
}

func (s *Server) errorResponse(err error) *response.Response {
	resp := response.New(httperr.StatusOf(err))
	resp.Protocol = protocolHTTP11
	if s.opts.ServerName != "" {
		resp.Headers.Set("Server", s.opts.ServerName)
	}
	return resp
}

// closeBody releases any resource (e.g. an open file from response.ServeFile)
// backing the response body, matching
// original_source/mhttp/server.py's finally: response.delete().
func closeBody(resp *response.Response) {
	if c, ok := resp.Body().(interface{ Close() error }); ok {
		c.Close()
	}
}

func (s *Server) writeError(sc *sock.Socket, err error) {
	resp := s.errorResponse(err)
	if writeErr := response.Write(sc, resp, s.opts.ResponseConfig); writeErr != nil {
		s.opts.Logger(writeErr)
	}
}
