package gpib

import (
	"errors"
	"fmt"
	"sync"

	"github.com/arloliu/go-gpib/internal/util"
	"github.com/arloliu/go-gpib/logger"
)

// Session owns a single device descriptor bound to one bus address.
//
// A session is used as open, clear, any number of queries, then close. Any
// failed clear or query takes the device offline immediately, so the
// descriptor is released even if the caller never calls Close.
//
// All operations are serialized by a session lock; the driver's status
// outputs belong to one call at a time. Independent sessions do not share
// any state.
type Session struct {
	mu      sync.Mutex
	drv     Driver
	addr    Address
	timeout Timeout
	cfg     sessionConfig
	logger  logger.Logger

	handle Handle
	state  atomicState

	metrics SessionMetrics
}

// NewSession creates a session for the device at addr. The session starts
// in UnopenedState; no driver call is made until Open.
func NewSession(drv Driver, addr Address, timeout Timeout, opts ...SessionOption) (*Session, error) {
	if drv == nil {
		return nil, errors.New("gpib: driver is nil")
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if !timeout.Valid() {
		return nil, fmt.Errorf("gpib: invalid timeout tier %d", int(timeout))
	}

	cfg := defaultSessionConfig()
	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return nil, err
		}
	}

	s := &Session{
		drv:     drv,
		addr:    addr,
		timeout: timeout,
		cfg:     cfg,
		logger:  cfg.logger.With("board", addr.Board, "pad", addr.Primary, "sad", addr.Secondary),
		handle:  InvalidHandle,
	}
	s.state.Set(UnopenedState)

	return s, nil
}

// State returns the current session state. It does not take the session lock.
func (s *Session) State() State { return s.state.Get() }

// Address returns the device address.
func (s *Session) Address() Address { return s.addr }

// Timeout returns the timeout tier.
func (s *Session) Timeout() Timeout { return s.timeout }

// Handle returns the device descriptor, or InvalidHandle when the session is
// not open.
func (s *Session) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.handle
}

// Metrics returns the metrics of the session.
func (s *Session) Metrics() *SessionMetrics { return &s.metrics }

// Open acquires a device descriptor from the driver.
//
// On failure the session stays in UnopenedState and no offline call is made,
// since nothing was acquired. The returned error has kind KindOpenFailed.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("open", evOpened); err != nil {
		return err
	}

	h, res := s.drv.Open(OpenParams{
		Address:   s.addr,
		Timeout:   s.timeout,
		AssertEOI: s.cfg.assertEOI,
		EOS:       s.cfg.eosMode,
	})
	if !h.Valid() {
		s.metrics.incOpenErrCount()
		err := newDriverError(KindOpenFailed, "open", s.addr, res)
		s.logger.Error("gpib: open failed", "handle", int(h), "diag", err.Diagnostic.String())

		return err
	}

	s.handle = h
	s.apply(evOpened)

	return nil
}

// Clear sends the selected device clear message, resetting the device's
// message exchange state. The session must be in OpenState.
//
// On failure the device is forced offline and the error has kind KindClearFailed.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("clear", evCleared); err != nil {
		return err
	}
	defer s.releaseOnPanic("clear")

	res := s.drv.Clear(s.handle)
	if res.Failed() {
		err := newDriverError(KindClearFailed, "clear", s.addr, res)
		s.forceOffline("clear", err)

		return err
	}

	s.apply(evCleared)

	return nil
}

// Query writes cmd to the device and then reads at most maxResponseBytes
// bytes of response. The session must be in ReadyState.
//
// The returned slice holds exactly the bytes the driver reported as
// received. A failed write returns a KindWriteFailed error without reading;
// a failed read returns a KindReadFailed error. Either failure forces the
// device offline; no partial response is returned.
//
// A maxResponseBytes below 1 fails with KindInvalidArgument before any
// driver call. An empty cmd is passed to the driver as is.
func (s *Session) Query(cmd []byte, maxResponseBytes int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxResponseBytes <= 0 {
		return nil, newLocalError(KindInvalidArgument, "query", s.addr,
			"response buffer size %d must be positive", maxResponseBytes)
	}
	if err := s.check("query", evBegin); err != nil {
		return nil, err
	}
	defer s.releaseOnPanic("query")

	s.apply(evBegin)

	wres := s.drv.Write(s.handle, cmd)
	if wres.Failed() {
		s.metrics.incQueryErrCount()
		err := newDriverError(KindWriteFailed, "query", s.addr, wres)
		s.forceOffline("write", err)

		return nil, err
	}
	s.metrics.addBytesSent(wres.Count)

	buf := make([]byte, maxResponseBytes)
	rres := s.drv.Read(s.handle, buf)
	if rres.Failed() {
		s.metrics.incQueryErrCount()
		err := newDriverError(KindReadFailed, "query", s.addr, rres)
		s.forceOffline("read", err)

		return nil, err
	}

	n := min(max(rres.Count, 0), len(buf))
	s.metrics.addBytesRecv(n)
	s.metrics.incQueryCount()
	s.apply(evEnd)

	return util.CloneSlice(buf[:n], 0), nil
}

// QueryString is Query for text commands.
func (s *Session) QueryString(cmd string, maxResponseBytes int) (string, error) {
	resp, err := s.Query([]byte(cmd), maxResponseBytes)
	if err != nil {
		return "", err
	}

	return string(resp), nil
}

// Close takes the device offline and moves the session to OfflineState.
//
// Close is idempotent: closing an offline session is a no-op and makes no
// driver call. Closing a session that was never opened only changes its
// state. The session is offline after Close returns even when the driver
// reports a failure; that failure is returned with kind KindCloseFailed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() { //nolint:exhaustive
	case OfflineState:
		return nil
	case UnopenedState:
		s.apply(evClose)
		return nil
	}

	res := s.drv.Offline(s.handle)
	s.handle = InvalidHandle
	s.apply(evClose)

	if res.Failed() {
		s.metrics.incCloseErrCount()
		err := newDriverError(KindCloseFailed, "close", s.addr, res)
		s.logger.Error("gpib: take offline failed", "diag", err.Diagnostic.String())

		return err
	}

	return nil
}

// check returns a KindInvalidState error if ev is not accepted in the current state.
func (s *Session) check(op string, ev event) error {
	cur := s.State()
	if _, err := transition(cur, ev); err != nil {
		return newLocalError(KindInvalidState, op, s.addr, "%s not allowed in %s state", op, cur)
	}

	return nil
}

// apply moves the session along ev and notifies the state change handlers.
func (s *Session) apply(ev event) {
	prev := s.State()
	next, err := transition(prev, ev)
	if err != nil {
		s.logger.Error("gpib: rejected state transition", "state", prev, "event", ev)
		return
	}
	if next == prev {
		return
	}

	s.state.Set(next)
	s.logger.Debug("gpib: session state changed", "prevState", prev, "newState", next, "event", ev)

	for _, handler := range s.cfg.handlers {
		handler(s, prev, next)
	}
}

// forceOffline takes the device offline after a failed operation. The
// result of the offline call is logged and otherwise ignored.
func (s *Session) forceOffline(op string, cause error) {
	s.metrics.incForcedOfflineCount()
	s.logger.Warn("gpib: forcing device offline", "op", op, "error", cause)

	if res := s.drv.Offline(s.handle); res.Failed() {
		s.logger.Warn("gpib: forced offline reported failure", "op", op, "diag", res.Diagnostic().String())
	}
	s.handle = InvalidHandle
	s.apply(evFail)
}

// releaseOnPanic forces the device offline when a driver call panics, then
// re-panics. It must be deferred while the session lock is held.
func (s *Session) releaseOnPanic(op string) {
	if r := recover(); r != nil {
		if s.handle.Valid() {
			s.forceOffline(op, fmt.Errorf("gpib: panic: %v", r))
		}
		panic(r)
	}
}

// Run opens and clears a session for addr, calls fn with it and closes the
// session on every exit path, including a panic in fn, which is re-raised
// after the device is taken offline.
//
// The error of fn takes precedence over the error of Close.
func Run(drv Driver, addr Address, timeout Timeout, fn func(*Session) error, opts ...SessionOption) (err error) {
	s, err := NewSession(drv, addr, timeout, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = s.Close()
			panic(r)
		}

		if closeErr := s.Close(); err == nil {
			err = closeErr
		}
	}()

	if err = s.Open(); err != nil {
		return err
	}
	if err = s.Clear(); err != nil {
		return err
	}

	return fn(s)
}
