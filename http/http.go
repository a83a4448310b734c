// Package http is a small HTTP/1.1 server engine meant to run behind a
// reverse proxy. It owns request parsing, routing, response framing, the
// keep-alive loop and graceful draining. TLS, rate limiting, body-size limits,
// slow-client protection and HTTP/2 are left to the proxy.
//
// Bodies are always framed with Content-Length. Chunked transfer coding is
// rejected on requests and never produced on responses.
package http

const (
	DefaultMaxLineLength   = 8 * 1024 // 8kB
	DefaultMaxHeaders      = 100
	DefaultReadBufferSize  = 4096 // 4kB
	DefaultWriteBufferSize = 4096 // 4kB
	DefaultAddr            = "0.0.0.0:8080"
)

const (
	protocolHttp10 = "HTTP/1.0"
	protocolHttp11 = "HTTP/1.1"

	HeaderAllow            = "Allow"
	HeaderConnection       = "Connection"
	HeaderContentLength    = "Content-Length"
	HeaderContentType      = "Content-Type"
	HeaderLocation         = "Location"
	HeaderRequestID        = "X-Request-Id"
	HeaderTransferEncoding = "Transfer-Encoding"
)

// Handler serves one request. The returned value is converted with Respond
// exactly once; a nil Responder is treated as a handler fault.
type Handler func(req *Request) Responder

// Responder is implemented by anything a handler may return.
type Responder interface {
	Respond() Response
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func() Response

func (f ResponderFunc) Respond() Response {
	return f()
}
