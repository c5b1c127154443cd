// Package syncer drains the pending-check queue to the remote service.
//
// A drain attempts every entry present when it starts exactly once, oldest
// first. Accepted entries are removed; failed entries stay queued with their
// attempt count bumped and are retried by the next drain. Only one drain
// runs at a time.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/fieldcheck/internal/queue"
	"github.com/roach88/fieldcheck/internal/remote"
)

// ErrDrainInProgress is returned when Drain is called while another drain
// is still running.
var ErrDrainInProgress = errors.New("drain already in progress")

// Result is the aggregate outcome of one drain.
type Result struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

// Stats describes the most recent completed drain.
type Stats struct {
	Drains   int       `json:"drains"`
	LastRun  time.Time `json:"last_run"`
	LastSync Result    `json:"last_result"`
}

// Queue is the subset of queue.Queue a drain needs.
type Queue interface {
	DequeueAll(ctx context.Context) ([]queue.Entry, error)
	Remove(ctx context.Context, entryID string) error
	MarkAttempt(ctx context.Context, entryID string, cause error) error
}

// Coordinator runs drains.
//
// Thread-safety: safe for concurrent use; concurrent Drain calls are
// rejected with ErrDrainInProgress.
type Coordinator struct {
	remote remote.Service
	queue  Queue
	now    func() time.Time
	log    *slog.Logger

	running atomic.Bool

	mu    sync.Mutex
	stats Stats
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithClock overrides the clock used for Stats.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a Coordinator.
func New(svc remote.Service, q Queue, opts ...Option) *Coordinator {
	c := &Coordinator{
		remote: svc,
		queue:  q,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Drain submits every queued entry once. The caller is responsible for only
// draining while connected.
//
// A failure reading the queue aborts the drain and is returned. Failures
// sending an entry are counted, never returned. A failure removing an
// accepted entry is logged and the entry counts as failed: it stays queued
// and will be sent again.
func (c *Coordinator) Drain(ctx context.Context) (Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Result{}, ErrDrainInProgress
	}
	defer c.running.Store(false)

	entries, err := c.queue.DequeueAll(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, e := range entries {
		if c.send(ctx, e) {
			res.SuccessCount++
		} else {
			res.FailedCount++
		}
	}

	c.mu.Lock()
	c.stats.Drains++
	c.stats.LastRun = c.now().UTC()
	c.stats.LastSync = res
	c.mu.Unlock()

	c.log.Info("drain finished",
		"entries", len(entries),
		"success_count", res.SuccessCount,
		"failed_count", res.FailedCount,
	)
	return res, nil
}

// send attempts one entry and reports whether it left the queue.
func (c *Coordinator) send(ctx context.Context, e queue.Entry) bool {
	if err := c.remote.SubmitCheck(ctx, e.Request); err != nil {
		c.log.Warn("queued check not accepted",
			"entry_id", e.EntryID,
			"asset_id", e.Request.AssetID,
			"attempt", e.AttemptCount+1,
			"error", err,
		)
		if merr := c.queue.MarkAttempt(ctx, e.EntryID, err); merr != nil {
			c.log.Error("record attempt failed", "entry_id", e.EntryID, "error", merr)
		}
		return false
	}

	if err := c.queue.Remove(ctx, e.EntryID); err != nil {
		c.log.Error("remove accepted entry failed", "entry_id", e.EntryID, "error", err)
		return false
	}
	c.log.Debug("queued check sent", "entry_id", e.EntryID, "asset_id", e.Request.AssetID)
	return true
}

// Stats returns the statistics of completed drains.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// InProgress reports whether a drain is running.
func (c *Coordinator) InProgress() bool {
	return c.running.Load()
}
