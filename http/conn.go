package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"
)

// ConnState is the phase of a connection handler.
type ConnState uint8

const (
	StateAwaitingRequest ConnState = iota + 1
	StateParsing
	StateDispatching
	StateWritingResponse
	StateClosing
)

func (st ConnState) String() string {
	switch st {
	case StateAwaitingRequest:
		return "awaiting request"
	case StateParsing:
		return "parsing"
	case StateDispatching:
		return "dispatching"
	case StateWritingResponse:
		return "writing response"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("ConnState(%d)", uint8(st))
	}
}

// aLongTimeAgo is a deadline in the past used to unblock a pending read.
var aLongTimeAgo = time.Unix(1, 0)

const (
	// rstAvoidanceDelay bounds how long a connection closed by the server
	// after an error keeps discarding unread input, so the peer reads the
	// error response before the kernel resets the socket.
	rstAvoidanceDelay = 500 * time.Millisecond
	maxLingerBytes    = 256 << 10
)

// conn owns one socket. Exactly one request is in flight at a time: the
// next request is not parsed before the current response was flushed.
type conn struct {
	server *Server
	rwc    net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
	parser *Parser
	ctx    context.Context

	mu     sync.Mutex
	state  ConnState
	// woken is set when draining interrupted an idle read.
	woken  bool
	// linger is set when the server closes with request bytes possibly
	// still unread.
	linger bool

	requests int
}

func newConn(s *Server, rwc net.Conn) *conn {
	return &conn{
		server: s,
		rwc:    rwc,
		br:     bufio.NewReaderSize(rwc, s.cfg.ReadBufferSize),
		bw:     bufio.NewWriterSize(rwc, s.cfg.WriteBufferSize),
		parser: NewParser(s.cfg.MaxLineLength, s.cfg.MaxHeaders),
		ctx:    context.Background(),
	}
}

func (c *conn) setState(st ConnState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()

	if hook := c.server.ConnState; hook != nil {
		hook(c.rwc, st)
	}
}

// wakeIfIdle runs when draining begins. A connection still waiting for the
// first byte of its next request has nothing in flight, so its read is
// interrupted and it closes instead of pinning the drain.
func (c *conn) wakeIfIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAwaitingRequest {
		c.woken = true
		c.rwc.SetReadDeadline(aLongTimeAgo)
	}
}

func (c *conn) serve() {
	ins := c.server.ins
	ins.connections.Add(c.ctx, 1)
	defer ins.connections.Add(c.ctx, -1)

	stop := context.AfterFunc(c.server.shutdown.Context(), c.wakeIfIdle)
	defer stop()

	defer func() {
		c.setState(StateClosing)
		c.close()
	}()

	for {
		c.setState(StateAwaitingRequest)
		if c.server.shutdown.Draining() {
			return
		}

		if _, err := c.br.Peek(1); err != nil {
			if c.isWoken() || err == io.EOF {
				return
			}
			c.ioError(&IoError{Op: ConnectionReset, Err: err})
			return
		}

		c.mu.Lock()
		woken := c.woken
		if !woken {
			c.state = StateParsing
		}
		c.mu.Unlock()
		if woken {
			return
		}
		if hook := c.server.ConnState; hook != nil {
			hook(c.rwc, StateParsing)
		}

		if !c.exchange() {
			return
		}
	}
}

func (c *conn) isWoken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.woken
}

// exchange handles one request and reports whether the connection stays
// open for another.
func (c *conn) exchange() bool {
	s := c.server

	req, err := c.parser.Parse(c.br)
	if err != nil {
		c.reject(err)
		return false
	}
	c.requests++

	start := time.Now()
	ctx := withConnInfo(c.ctx, ConnInfo{
		RemoteAddr: c.rwc.RemoteAddr().String(),
		LocalAddr:  c.rwc.LocalAddr().String(),
		Requests:   c.requests,
	})
	ctx, span := s.ins.startRequest(ctx, req)
	req.ctx = ctx

	c.setState(StateDispatching)
	res, failed, fault := c.dispatch(req)
	s.ins.routed(span, req)

	keepAlive := !failed && req.KeepAlive() && !s.shutdown.Draining()
	c.linger = failed

	c.setState(StateWritingResponse)
	werr := c.write(&res, frame{head: req.Method == MethodHead, close: !keepAlive})
	s.ins.endRequest(ctx, span, req, res.Status, start, fault)

	if fault != nil {
		var hf *HandlerFault
		if errors.As(fault, &hf) && hf.Stack != nil {
			s.logger().ErrorContext(ctx, "handler panicked",
				"method", req.Method.String(), "route", req.Pattern, "error", fault, "stack", string(hf.Stack))
		} else {
			s.logger().ErrorContext(ctx, "handler fault",
				"method", req.Method.String(), "route", req.Pattern, "error", fault)
		}
		s.report(ctx, fault)
	}
	if werr != nil {
		c.ioError(werr)
		return false
	}
	return keepAlive
}

// dispatch resolves the route and runs the handler. Routing errors become
// 404 or 405 responses and a handler fault becomes a 500; failed reports
// that the engine answered instead of the handler. Like every error
// response these end the connection, so a fault never affects another
// connection and never leaves this one in an unknown state.
func (c *conn) dispatch(req *Request) (res Response, failed bool, fault error) {
	match, err := c.server.Router.Lookup(req.Method, req.Path)
	if err != nil {
		var mna *MethodNotAllowedError
		if errors.As(err, &mna) {
			return errorResponse(StatusMethodNotAllowed).WithHeader(HeaderAllow, mna.allowHeader()), true, nil
		}
		return errorResponse(StatusNotFound), true, nil
	}

	req.Params = match.Params
	req.Pattern = match.Pattern

	res, fault = call(match.Handler, req)
	if fault != nil {
		return errorResponse(StatusInternalServerError), true, fault
	}
	return res, false, nil
}

func call(handler Handler, req *Request) (res Response, fault error) {
	defer func() {
		if v := recover(); v != nil {
			fault = &HandlerFault{Method: req.Method, Pattern: req.Pattern, Value: v, Stack: debug.Stack()}
		}
	}()

	r := handler(req)
	if r == nil {
		return Response{}, &HandlerFault{Method: req.Method, Pattern: req.Pattern}
	}
	res = r.Respond()
	if res.Status == 0 {
		res.Status = StatusOK
	}
	// 1xx is interim and cannot end an exchange.
	if res.Status < 200 || res.Status > 599 {
		return Response{}, &HandlerFault{Method: req.Method, Pattern: req.Pattern, Value: fmt.Errorf("%w %d", ErrInvalidStatus, res.Status)}
	}
	return res, nil
}

// reject answers a request the parser refused. The connection always
// closes afterwards since the rest of the stream cannot be framed.
func (c *conn) reject(err error) {
	if err == io.EOF {
		return
	}

	var ioErr *IoError
	if errors.As(err, &ioErr) {
		c.ioError(ioErr)
		return
	}

	var pe *ParseError
	if !errors.As(err, &pe) {
		c.server.logger().Error("unexpected parse failure", "server", c.server.Name, "error", err)
		return
	}
	c.server.ins.protocolError(c.ctx, pe.Kind)
	c.server.logger().Debug("rejecting request",
		"server", c.server.Name, "remote", c.rwc.RemoteAddr().String(), "error", err)

	if pe.Kind == PeerClosed {
		return
	}

	status := StatusBadRequest
	if pe.Kind == LineOrHeaderTooLarge {
		status = StatusRequestHeaderFieldsTooLarge
		if pe.RequestLine {
			status = StatusURITooLong
		}
	}

	c.setState(StateWritingResponse)
	c.linger = true
	res := errorResponse(status)
	if werr := c.write(&res, frame{close: true}); werr != nil {
		c.ioError(werr)
	}
}

func (c *conn) write(res *Response, f frame) error {
	if err := res.write(c.bw, f); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			return err
		}
		return &IoError{Op: WriteFailed, Err: err}
	}
	if err := c.bw.Flush(); err != nil {
		return &IoError{Op: WriteFailed, Err: err}
	}
	return nil
}

func (c *conn) close() {
	if c.linger {
		if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok && cw.CloseWrite() == nil {
			c.rwc.SetReadDeadline(time.Now().Add(rstAvoidanceDelay))
			io.CopyN(io.Discard, c.rwc, maxLingerBytes)
		}
	}
	c.rwc.Close()
}

func (c *conn) ioError(err error) {
	c.server.logger().Debug("connection error",
		"server", c.server.Name, "remote", c.rwc.RemoteAddr().String(), "error", err)
	c.server.report(c.ctx, err)
}
