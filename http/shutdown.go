package http

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ShutdownState is the drain barrier's phase.
type ShutdownState uint32

const (
	NotStarted ShutdownState = iota
	Draining
	Complete
)

func (s ShutdownState) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Draining:
		return "draining"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("ShutdownState(%d)", uint32(s))
	}
}

// Shutdown is the process-scoped drain barrier shared by the listener and
// every connection. It counts connections in flight and never closes
// sockets itself.
type Shutdown struct {
	mu         sync.Mutex
	state      ShutdownState
	inflight   int
	aborted    bool
	idle       chan struct{}
	idleClosed bool

	draining atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewShutdown() *Shutdown {
	ctx, cancel := context.WithCancel(context.Background())
	return &Shutdown{
		idle:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Begin moves NotStarted to Draining. It reports whether this call made the
// transition.
func (s *Shutdown) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotStarted {
		return false
	}
	s.state = Draining
	s.draining.Store(true)
	s.cancel()
	s.signalIdleLocked()
	return true
}

// Draining reports whether shutdown has begun.
func (s *Shutdown) Draining() bool {
	return s.draining.Load()
}

// Done is closed when draining begins.
func (s *Shutdown) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context is canceled when draining begins.
func (s *Shutdown) Context() context.Context {
	return s.ctx
}

func (s *Shutdown) State() ShutdownState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Enter counts a new connection. It refuses once draining began so no
// connection can start after the barrier may already have been released.
func (s *Shutdown) Enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotStarted {
		return false
	}
	s.inflight++
	return true
}

// Leave uncounts a connection admitted by Enter.
func (s *Shutdown) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == 0 {
		panic("http: Shutdown.Leave without matching Enter")
	}
	s.inflight--
	s.signalIdleLocked()
}

func (s *Shutdown) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Aborted reports whether Wait gave up on its deadline.
func (s *Shutdown) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Wait blocks until draining began and no connection is in flight, or until
// ctx is done. In the latter case it flags the drain as aborted and returns
// ErrAbortedDrain. Either way the state becomes Complete.
func (s *Shutdown) Wait(ctx context.Context) error {
	select {
	case <-s.idle:
		s.mu.Lock()
		s.state = Complete
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = Complete
		if s.idleClosed {
			return nil
		}
		s.aborted = true
		return fmt.Errorf("%w: %d in flight: %w", ErrAbortedDrain, s.inflight, ctx.Err())
	}
}

func (s *Shutdown) signalIdleLocked() {
	if s.state != NotStarted && s.inflight == 0 && !s.idleClosed {
		s.idleClosed = true
		close(s.idle)
	}
}
