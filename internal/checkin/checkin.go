// Package checkin decides where an operator's condition check goes: straight
// to the remote service, back to the operator as a rejection, or into the
// pending-check queue.
package checkin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/failure"
	"github.com/roach88/fieldcheck/internal/queue"
	"github.com/roach88/fieldcheck/internal/remote"
)

// Disposition says what happened to a submitted check.
type Disposition string

const (
	// DispositionSent means the remote service accepted the check.
	DispositionSent Disposition = "sent"

	// DispositionQueued means the check was saved for a later drain.
	DispositionQueued Disposition = "queued"
)

// Receipt is the outcome of a Submit that did not fail.
type Receipt struct {
	Disposition Disposition `json:"disposition"`

	// Entry is set when Disposition is DispositionQueued.
	Entry *queue.Entry `json:"entry,omitempty"`

	// Cause is the transient failure that sent a connected submission to
	// the queue. Empty when the device was offline.
	Cause string `json:"cause,omitempty"`
}

// Queue is the subset of queue.Queue the submitter needs.
type Queue interface {
	Enqueue(ctx context.Context, req asset.CheckRequest) (queue.Entry, error)
}

// Connectivity reports whether a direct send should be attempted.
type Connectivity interface {
	IsConnected() bool
}

// Submitter routes check requests.
type Submitter struct {
	remote remote.Service
	queue  Queue
	conn   Connectivity
	log    *slog.Logger
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) {
		s.log = l
	}
}

// New creates a Submitter.
func New(svc remote.Service, q Queue, conn Connectivity, opts ...Option) *Submitter {
	s := &Submitter{
		remote: svc,
		queue:  q,
		conn:   conn,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends req or queues it.
//
// Errors:
//   - asset.ErrInvalidCheck: req failed local validation; nothing was sent
//   - failure.ValidationRejected: the remote service rejected req; not queued
//   - failure.Persistence: req could not be queued
func (s *Submitter) Submit(ctx context.Context, req asset.CheckRequest) (Receipt, error) {
	if err := req.Validate(); err != nil {
		return Receipt{}, fmt.Errorf("checkin.submit: %w", err)
	}

	if !s.conn.IsConnected() {
		s.log.Info("offline, queueing check", "asset_id", req.AssetID)
		return s.enqueue(ctx, req, nil)
	}

	err := s.remote.SubmitCheck(ctx, req)
	switch {
	case err == nil:
		s.log.Info("check sent", "asset_id", req.AssetID, "check_status", req.CheckStatus)
		return Receipt{Disposition: DispositionSent}, nil
	case failure.IsValidationRejected(err):
		s.log.Warn("check rejected", "asset_id", req.AssetID, "message", failure.Message(err))
		return Receipt{}, err
	}

	s.log.Warn("check send failed, queueing", "asset_id", req.AssetID, "error", err)
	return s.enqueue(ctx, req, err)
}

func (s *Submitter) enqueue(ctx context.Context, req asset.CheckRequest, cause error) (Receipt, error) {
	entry, err := s.queue.Enqueue(ctx, req)
	if err != nil {
		return Receipt{}, err
	}
	r := Receipt{Disposition: DispositionQueued, Entry: &entry}
	if cause != nil {
		r.Cause = failure.Message(cause)
	}
	return r, nil
}
