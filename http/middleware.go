package http

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Middleware func(next Handler) Handler

// Chain wraps handler so that the first middleware runs outermost.
func Chain(handler Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// RequestIDMiddleware propagates the caller's X-Request-Id or generates a
// new one, stores it in the request context and echoes it on the response.
func RequestIDMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(req *Request) Responder {
			id := req.Header(HeaderRequestID)
			if id == "" || len(id) > 128 || !validToken(id) {
				id = uuid.NewString()
			}

			res := respond(next(req.WithContext(WithRequestID(req.Context(), id))))
			if res == nil {
				return nil
			}
			return res.WithHeader(HeaderRequestID, id)
		}
	}
}

// AccessLogMiddleware logs one line per request once the handler returned.
func AccessLogMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(req *Request) Responder {
			start := time.Now()
			res := respond(next(req))

			attrs := []any{
				"method", req.Method.String(),
				"path", req.Path,
				"route", req.Pattern,
				"duration", time.Since(start),
			}
			if id, ok := RequestIDFrom(req.Context()); ok {
				attrs = append(attrs, "request_id", id)
			}
			if res == nil {
				logger.WarnContext(req.Context(), "request produced no response", attrs...)
				return nil
			}

			attrs = append(attrs, "status", int(res.Status), "bytes", len(res.Body))
			logger.InfoContext(req.Context(), "request", attrs...)
			return res
		}
	}
}

// respond converts a handler result once so middleware can inspect it.
func respond(r Responder) *Response {
	if r == nil {
		return nil
	}
	res := r.Respond()
	if res.Status == 0 {
		res.Status = StatusOK
	}
	return &res
}
