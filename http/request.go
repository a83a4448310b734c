package http

import (
	"context"
	"strings"
)

// Request is a fully read request. Body always holds exactly Content-Length
// bytes and must not be modified by handlers.
type Request struct {
	Method  Method
	Path    string
	Proto   string
	Headers Headers
	Body    []byte

	// Params holds path parameters in pattern declaration order.
	Params Params
	// Pattern is the route pattern that matched, set by the server.
	Pattern string

	ctx context.Context
}

// Context returns the request's context. If nil, returns Background.
func (req *Request) Context() context.Context {
	if req == nil || req.ctx == nil {
		return context.Background()
	}
	return req.ctx
}

// WithContext returns a shallow copy of req with its context changed to ctx.
func (req *Request) WithContext(ctx context.Context) *Request {
	r2 := *req
	r2.ctx = ctx
	return &r2
}

// Header returns the value of a request header, case-insensitively.
func (req *Request) Header(name string) string {
	return req.Headers.Get(name)
}

// Param returns a named path parameter.
func (req *Request) Param(name string) string {
	return req.Params.Get(name)
}

// KeepAlive reports whether the client allows the connection to be reused.
func (req *Request) KeepAlive() bool {
	conn, _ := req.Headers.Lookup(HeaderConnection)
	if req.Proto == protocolHttp10 {
		return hasToken(conn, "keep-alive")
	}
	return !hasToken(conn, "close")
}

// hasToken reports whether a comma separated header value lists token.
func hasToken(v, token string) bool {
	for v != "" {
		var part string
		part, v, _ = strings.Cut(v, ",")
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
