package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/checkin"
	"github.com/roach88/fieldcheck/internal/failure"
	"github.com/roach88/fieldcheck/internal/resolve"
)

// ErrIgnored is returned for operator actions that are not valid in the
// current state, such as a scan while a resolution is in flight.
var ErrIgnored = errors.New("action ignored in current state")

// Resolver is implemented by resolve.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (resolve.Resolution, error)
}

// Submitter is implemented by checkin.Submitter.
type Submitter interface {
	Submit(ctx context.Context, req asset.CheckRequest) (checkin.Receipt, error)
}

// Snapshot is what a UI renders.
type Snapshot struct {
	State      State               `json:"state"`
	Resolution *resolve.Resolution `json:"resolution,omitempty"`
	Receipt    *checkin.Receipt    `json:"receipt,omitempty"`

	// Message is the last operator-facing failure: not found, rejection
	// text or a local error. Cleared by the next successful step.
	Message string `json:"message,omitempty"`
}

// Session drives Transition for one operator.
//
// Thread-safety: safe for concurrent use. Collaborators are called without
// the lock held; actions that arrive meanwhile see the in-flight state and
// are ignored.
type Session struct {
	resolver  Resolver
	submitter Submitter
	log       *slog.Logger

	mu   sync.Mutex
	snap Snapshot
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// New creates an Idle session.
func New(r Resolver, sub Submitter, opts ...Option) *Session {
	s := &Session{
		resolver:  r,
		submitter: sub,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Scan resolves raw. Only valid when Idle.
func (s *Session) Scan(ctx context.Context, raw string) (Snapshot, error) {
	if !s.fire(ScanReceived, func(sn *Snapshot) {
		sn.Resolution = nil
		sn.Receipt = nil
		sn.Message = ""
	}) {
		return s.Snapshot(), ErrIgnored
	}

	res, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		s.fire(ResolveFailed, func(sn *Snapshot) {
			sn.Message = failure.Message(err)
		})
		return s.Snapshot(), err
	}

	s.fire(Resolved, func(sn *Snapshot) {
		sn.Resolution = &res
	})
	return s.Snapshot(), nil
}

// Submit builds a check for the asset under review and submits it. Only
// valid when Reviewing. Invalid input leaves the session in Reviewing.
func (s *Session) Submit(ctx context.Context, status asset.CheckStatus, remark string, date asset.CheckDate) (Snapshot, error) {
	s.mu.Lock()
	if s.snap.State != Reviewing || s.snap.Resolution == nil {
		s.mu.Unlock()
		return s.Snapshot(), ErrIgnored
	}
	req, err := asset.NewCheckRequest(s.snap.Resolution.Asset, status, remark, date)
	if err != nil {
		s.snap.Message = err.Error()
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	s.applyLocked(SubmitRequested, func(sn *Snapshot) {
		sn.Message = ""
	})
	s.mu.Unlock()

	receipt, err := s.submitter.Submit(ctx, req)
	switch {
	case err == nil && receipt.Disposition == checkin.DispositionQueued:
		s.fire(QueuedLocally, func(sn *Snapshot) {
			sn.Receipt = &receipt
		})
	case err == nil:
		s.fire(Sent, func(sn *Snapshot) {
			sn.Receipt = &receipt
			sn.Resolution = nil
		})
	case failure.IsValidationRejected(err):
		s.fire(Rejected, func(sn *Snapshot) {
			sn.Message = failure.Message(err)
		})
	default:
		s.fire(SubmitFailed, func(sn *Snapshot) {
			sn.Message = failure.Message(err)
		})
	}
	return s.Snapshot(), err
}

// Reset returns to Idle from Reviewing or Queued, and clears Idle.
func (s *Session) Reset() (Snapshot, error) {
	if !s.fire(Reset, func(sn *Snapshot) {
		*sn = Snapshot{}
	}) {
		return s.Snapshot(), ErrIgnored
	}
	return s.Snapshot(), nil
}

// fire applies e and, when valid, mutate. It reports whether e was valid.
func (s *Session) fire(e Event, mutate func(*Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(e, mutate)
}

func (s *Session) applyLocked(e Event, mutate func(*Snapshot)) bool {
	from := s.snap.State
	next, ok := Transition(from, e)
	if !ok {
		s.log.Debug("event ignored", "state", from, "event", e)
		return false
	}
	if mutate != nil {
		mutate(&s.snap)
	}
	s.snap.State = next
	s.log.Debug("session transition", "from", from, "event", e, "to", next)
	return true
}
