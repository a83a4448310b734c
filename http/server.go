package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxAcceptDelay = time.Second

// Config bounds per-connection memory and the drain. Zero values take the
// package defaults.
type Config struct {
	Addr            string
	MaxLineLength   int
	MaxHeaders      int
	ReadBufferSize  int
	WriteBufferSize int
	// DrainTimeout bounds how long Serve waits for in-flight connections
	// once shutdown began. Zero waits until they finish.
	DrainTimeout time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	if cfg.MaxHeaders <= 0 {
		cfg.MaxHeaders = DefaultMaxHeaders
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = DefaultWriteBufferSize
	}
	return cfg
}

type Server struct {
	Name   string
	Router *Router
	Config Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// TracerProvider, MeterProvider and Propagator default to the
	// OpenTelemetry globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Propagator     propagation.TextMapPropagator

	// OnError receives handler faults and connection I/O errors.
	OnError func(ctx context.Context, err error)
	// ConnState, if set, is called on every connection state transition.
	ConnState func(net.Conn, ConnState)
	// Signals that begin draining. Nil means SIGINT and SIGTERM; an empty
	// non-nil slice disables signal handling.
	Signals []os.Signal

	shutdown *Shutdown

	initOnce sync.Once
	initErr  error
	cfg      Config
	ins      *instruments

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(name string) *Server {
	return &Server{
		Name:     name,
		Router:   NewRouter(),
		shutdown: NewShutdown(),
	}
}

// Register adds a route. It must be called before Serve.
func (s *Server) Register(method Method, pattern string, handler Handler, middleware ...Middleware) {
	s.Router.Handle(method, pattern, handler, middleware...)
}

// Drain returns the server's shutdown coordinator.
func (s *Server) Drain() *Shutdown {
	return s.shutdown
}

// Bind opens the listening socket. An empty addr uses Config.Addr.
func (s *Server) Bind(addr string) error {
	if s.shutdown.Draining() {
		return ErrServerClosed
	}
	if addr == "" {
		addr = s.Config.withDefaults().Addr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		ln.Close()
		return errors.New("http: server already bound to " + s.listener.Addr().String())
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Bind.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds addr and serves until shutdown completes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Bind(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections on the bound socket until ctx is done, a
// configured signal arrives or Shutdown is called, then drains. It returns
// nil after a complete drain and an error matching ErrAbortedDrain when
// Config.DrainTimeout elapsed first.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return ErrNotBound
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve over a caller supplied listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	if err := s.init(); err != nil {
		ln.Close()
		return err
	}
	if s.shutdown.Draining() {
		ln.Close()
		return ErrServerClosed
	}
	s.Router.freeze()

	sigCtx, stop := s.notifyContext(ctx)
	defer stop()

	go func() {
		select {
		case <-sigCtx.Done():
			if s.shutdown.Begin() {
				s.logger().Info("shutdown signal received, draining connections",
					"server", s.Name, "in_flight", s.shutdown.InFlight())
			}
		case <-s.shutdown.Done():
		}
		ln.Close()
	}()

	s.logger().Info("listening", "server", s.Name, "addr", ln.Addr().String())
	acceptErr := s.acceptLoop(ln)

	return errors.Join(acceptErr, s.drain())
}

func (s *Server) acceptLoop(ln net.Listener) error {
	var delay time.Duration
	for {
		if s.shutdown.Draining() {
			return nil
		}

		rwc, err := ln.Accept()
		if err != nil {
			if s.shutdown.Draining() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.shutdown.Begin()
				return err
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.logger().Error("accept error", "server", s.Name, "error", err, "retry_in", delay)

			select {
			case <-time.After(delay):
			case <-s.shutdown.Done():
			}
			continue
		}
		delay = 0

		if !s.shutdown.Enter() {
			rwc.Close()
			return nil
		}
		go s.serveConn(rwc)
	}
}

func (s *Server) drain() error {
	ctx := context.Background()
	if s.cfg.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DrainTimeout)
		defer cancel()
	}

	if err := s.shutdown.Wait(ctx); err != nil {
		s.ins.drainAborted.Add(context.Background(), 1)
		s.logger().Warn("drain aborted", "server", s.Name, "error", err)
		return err
	}
	s.logger().Info("stopped", "server", s.Name)
	return nil
}

// Shutdown begins draining and waits for in-flight connections or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdown.Begin() {
		s.logger().Info("shutdown requested, draining connections",
			"server", s.Name, "in_flight", s.shutdown.InFlight())
	}
	return s.shutdown.Wait(ctx)
}

// ServeConn runs the connection handler for one already accepted socket and
// returns when it closes.
func (s *Server) ServeConn(rwc net.Conn) {
	if err := s.init(); err != nil {
		s.logger().Error("server init failed", "server", s.Name, "error", err)
		rwc.Close()
		return
	}
	s.Router.freeze()
	if !s.shutdown.Enter() {
		rwc.Close()
		return
	}
	s.serveConn(rwc)
}

func (s *Server) serveConn(rwc net.Conn) {
	defer s.shutdown.Leave()
	newConn(s, rwc).serve()
}

func (s *Server) init() error {
	s.initOnce.Do(func() {
		s.cfg = s.Config.withDefaults()
		s.ins, s.initErr = newInstruments(s.TracerProvider, s.MeterProvider, s.Propagator)
	})
	return s.initErr
}

func (s *Server) notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	signals := s.Signals
	if signals == nil {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	if len(signals) == 0 {
		return context.WithCancel(ctx)
	}
	return signal.NotifyContext(ctx, signals...)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) report(ctx context.Context, err error) {
	if s.OnError != nil {
		s.OnError(ctx, err)
	}
}
