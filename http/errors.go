package http

import (
	"errors"
	"fmt"
	"strings"
)

// ParseErrorKind classifies why a request could not be read.
type ParseErrorKind uint8

const (
	// Malformed covers a bad request line, bad header syntax, an unknown
	// method or a non-decimal Content-Length.
	Malformed ParseErrorKind = iota + 1
	// UnsupportedFraming means Transfer-Encoding was present.
	UnsupportedFraming
	// LineOrHeaderTooLarge means a configured line or header count limit
	// was exceeded.
	LineOrHeaderTooLarge
	// PeerClosed means the stream ended inside a request.
	PeerClosed
)

func (k ParseErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed request"
	case UnsupportedFraming:
		return "unsupported framing"
	case LineOrHeaderTooLarge:
		return "line or header too large"
	case PeerClosed:
		return "peer closed"
	default:
		return "parse error"
	}
}

// ParseError is returned by Parser.Parse.
type ParseError struct {
	Kind   ParseErrorKind
	Reason string
	// RequestLine is set when the limit was hit on the request line itself.
	RequestLine bool
	Err         error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("http: ")
	b.WriteString(e.Kind.String())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches any ParseError sentinel of the same kind.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	return ok && t.Reason == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrMalformed          = &ParseError{Kind: Malformed}
	ErrUnsupportedFraming = &ParseError{Kind: UnsupportedFraming}
	ErrTooLarge           = &ParseError{Kind: LineOrHeaderTooLarge}
	ErrPeerClosed         = &ParseError{Kind: PeerClosed}
)

func malformed(format string, args ...any) *ParseError {
	return &ParseError{Kind: Malformed, Reason: fmt.Sprintf(format, args...)}
}

// Routing errors.
var (
	ErrNotFound         = errors.New("http: no route matches path")
	ErrMethodNotAllowed = errors.New("http: method not allowed for path")
)

// MethodNotAllowedError carries the methods registered for the path.
type MethodNotAllowedError struct {
	Method  Method
	Allowed []Method
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("http: method %s not allowed, allowed: %s", e.Method, e.allowHeader())
}

func (e *MethodNotAllowedError) Is(target error) bool {
	return target == ErrMethodNotAllowed
}

func (e *MethodNotAllowedError) allowHeader() string {
	names := make([]string, len(e.Allowed))
	for i, m := range e.Allowed {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}

// HandlerFault is raised when a handler panics, returns a nil Responder or
// returns a status that cannot end an exchange. It ends the current exchange
// only.
type HandlerFault struct {
	Method  Method
	Pattern string
	Value   any
	Stack   []byte
}

func (e *HandlerFault) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("http: handler for %s %s returned no response", e.Method, e.Pattern)
	}
	if e.Stack == nil {
		return fmt.Sprintf("http: handler for %s %s: %v", e.Method, e.Pattern, e.Value)
	}
	return fmt.Sprintf("http: handler for %s %s panicked: %v", e.Method, e.Pattern, e.Value)
}

func (e *HandlerFault) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// IoOp tells which side of the socket failed.
type IoOp uint8

const (
	ConnectionReset IoOp = iota + 1
	WriteFailed
)

func (op IoOp) String() string {
	switch op {
	case ConnectionReset:
		return "connection reset"
	case WriteFailed:
		return "write failed"
	default:
		return "io"
	}
}

// IoError ends a connection without retry.
type IoError struct {
	Op  IoOp
	Err error
}

func (e *IoError) Error() string {
	return "http: " + e.Op.String() + ": " + e.Err.Error()
}

func (e *IoError) Unwrap() error {
	return e.Err
}

var (
	// ErrAbortedDrain is returned when the drain deadline elapsed with
	// connections still in flight.
	ErrAbortedDrain = errors.New("http: drain deadline elapsed with connections in flight")
	// ErrServerClosed is returned by Bind and Serve once shutdown began.
	ErrServerClosed = errors.New("http: server closed")
	// ErrNotBound is returned by Serve when Bind was not called.
	ErrNotBound = errors.New("http: server is not bound to an address")
)
