// Command httpd runs a demo server: a handful of routes exercising the
// request/response pipeline, session storage, and request-body upload.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/caldervale/go-rawhttpd/pkg/httperr"
	"github.com/caldervale/go-rawhttpd/pkg/response"
	"github.com/caldervale/go-rawhttpd/server"
)

func main() {
	addr := flag.String("addr", ":8080", "plaintext listen address")
	flag.Parse()

	srv := server.New(server.Options{
		Addr:       *addr,
		Handler:    server.HandlerFunc(route),
		ServerName: "go-rawhttpd",
		Logger:     func(err error) { log.Println(err) },
	})

	log.Printf("listening on %s", *addr)
	if err := srv.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func route(ctx *server.Context) *response.Response {
	req := ctx.Request
	switch {
	case req.Route == "/" && req.Method == "GET":
		return homeHandler(ctx)
	case req.Route == "/visits" && req.Method == "GET":
		return visitsHandler(ctx)
	case strings.HasPrefix(req.Route, "/upload") && req.Method == "POST":
		return uploadHandler(ctx)
	default:
		resp := response.New(httperr.NewNotFound("httpd.route", "no such route").Status)
		return resp
	}
}

func homeHandler(ctx *server.Context) *response.Response {
	resp, err := response.Make(map[string]any{
		"message": "hello from go-rawhttpd",
		"route":   ctx.Request.Route,
	}, nil, 200)
	if err != nil {
		return response.New(500)
	}
	return resp
}

// visitsHandler demonstrates session storage: each hit from the same
// client increments a per-session counter, persisted across requests via
// the Session cookie.
func visitsHandler(ctx *server.Context) *response.Response {
	count, _ := ctx.Session["visits"].(int)
	count++
	ctx.Session["visits"] = count

	resp, err := response.Make(map[string]any{"visits": count}, nil, 200)
	if err != nil {
		return response.New(500)
	}
	return resp
}

func uploadHandler(ctx *server.Context) *response.Response {
	req := ctx.Request
	if req.Body == nil {
		resp := response.New(400)
		return resp
	}
	data, err := req.Body.Data()
	if err != nil {
		return response.New(500)
	}
	resp, _ := response.Make(map[string]any{"received_bytes": len(data)}, nil, 200)
	return resp
}
