package http

import "context"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyConnInfo
)

// WithRequestID returns a new context that carries a request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom extracts the request ID from ctx.
func RequestIDFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKeyRequestID).(string)
	return s, ok && s != ""
}

// ConnInfo describes the connection a request arrived on.
type ConnInfo struct {
	RemoteAddr string
	LocalAddr  string
	// Requests counts exchanges on the connection, this one included.
	Requests int
}

func withConnInfo(ctx context.Context, info ConnInfo) context.Context {
	return context.WithValue(ctx, ctxKeyConnInfo, info)
}

// ConnInfoFrom returns the connection details stored by the server.
func ConnInfoFrom(ctx context.Context) (ConnInfo, bool) {
	info, ok := ctx.Value(ctxKeyConnInfo).(ConnInfo)
	return info, ok
}
