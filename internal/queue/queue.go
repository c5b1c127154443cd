// Package queue provides the durable, ordered queue of check requests that
// have not yet been accepted by the remote service.
//
// Entries are persisted before Enqueue returns and leave the queue only via
// Remove, after the remote service has accepted them. Every mutation touches
// a single entry; the queue is never rewritten wholesale.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/failure"
	"github.com/roach88/fieldcheck/internal/store"
)

// Bucket is the KV bucket holding queue entries.
const Bucket = "pending_checks"

// UnreadableBucket holds entries that no longer decode. They are moved out of
// Bucket so Count only reports checks a drain can still send.
const UnreadableBucket = "pending_checks_unreadable"

// Entry wraps a CheckRequest waiting to be sent.
type Entry struct {
	EntryID      string             `json:"entry_id"`
	Request      asset.CheckRequest `json:"request"`
	CreatedAt    time.Time          `json:"created_at"`
	AttemptCount int                `json:"attempt_count"`
	LastError    string             `json:"last_error,omitempty"`
}

// Queue is the pending-check queue.
//
// Thread-safety: all state lives in the KV store, so methods are as safe for
// concurrent use as the store itself.
type Queue struct {
	kv  store.KV
	ids IDGenerator
	now func() time.Time
	log *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithIDGenerator overrides entry id generation (default UUIDv7Generator).
func WithIDGenerator(g IDGenerator) Option {
	return func(q *Queue) {
		q.ids = g
	}
}

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.log = l
	}
}

// New creates a Queue over kv.
func New(kv store.KV, opts ...Option) *Queue {
	q := &Queue{
		kv:  kv,
		ids: UUIDv7Generator{},
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue validates req and persists it as a new entry. The entry is on disk
// when Enqueue returns without error.
func (q *Queue) Enqueue(ctx context.Context, req asset.CheckRequest) (Entry, error) {
	if err := req.Validate(); err != nil {
		return Entry{}, fmt.Errorf("queue.enqueue: %w", err)
	}

	entry := Entry{
		EntryID:   q.ids.Generate(),
		Request:   req,
		CreatedAt: q.now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("queue.enqueue: %w", err)
	}

	inserted, err := q.kv.Add(ctx, Bucket, entry.EntryID, data)
	if err != nil {
		return Entry{}, failure.Persistence("queue.enqueue", err)
	}
	if !inserted {
		return Entry{}, fmt.Errorf("queue.enqueue: duplicate entry id %q", entry.EntryID)
	}

	q.log.Info("check queued",
		"entry_id", entry.EntryID,
		"asset_id", req.AssetID,
		"check_status", req.CheckStatus,
	)
	return entry, nil
}

// DequeueAll returns every entry, oldest first. It removes nothing it can
// decode; entries that fail to decode are logged and moved to
// UnreadableBucket.
func (q *Queue) DequeueAll(ctx context.Context) ([]Entry, error) {
	items, err := q.kv.List(ctx, Bucket)
	if err != nil {
		return nil, failure.Persistence("queue.dequeue_all", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		var e Entry
		if err := json.Unmarshal(it.Value, &e); err != nil {
			q.log.Error("undecodable queue entry", "entry_id", it.Key, "error", err)
			q.setAside(ctx, it)
			continue
		}
		entries = append(entries, e)
	}

	// items arrive in insertion order; the stable sort keeps it as tie-break
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

// setAside moves an undecodable item to UnreadableBucket. On failure the item
// stays where it is and is retried on the next DequeueAll.
func (q *Queue) setAside(ctx context.Context, it store.Item) {
	if err := q.kv.Set(ctx, UnreadableBucket, it.Key, it.Value); err != nil {
		q.log.Warn("could not set aside queue entry", "entry_id", it.Key, "error", err)
		return
	}
	if err := q.kv.Delete(ctx, Bucket, it.Key); err != nil {
		q.log.Warn("could not set aside queue entry", "entry_id", it.Key, "error", err)
	}
}

// Unreadable returns the number of entries set aside as undecodable.
func (q *Queue) Unreadable(ctx context.Context) (int, error) {
	n, err := q.kv.Count(ctx, UnreadableBucket)
	if err != nil {
		return 0, failure.Persistence("queue.unreadable", err)
	}
	return n, nil
}

// Remove deletes an entry after the remote service accepted it.
// Removing an absent entry is a no-op.
func (q *Queue) Remove(ctx context.Context, entryID string) error {
	if err := q.kv.Delete(ctx, Bucket, entryID); err != nil {
		return failure.Persistence("queue.remove", err)
	}
	q.log.Debug("queue entry removed", "entry_id", entryID)
	return nil
}

// Count returns the number of entries not yet removed.
func (q *Queue) Count(ctx context.Context) (int, error) {
	n, err := q.kv.Count(ctx, Bucket)
	if err != nil {
		return 0, failure.Persistence("queue.count", err)
	}
	return n, nil
}

// MarkAttempt records a failed send: it bumps AttemptCount and stores the
// cause. An entry removed in the meantime is left alone.
func (q *Queue) MarkAttempt(ctx context.Context, entryID string, cause error) error {
	data, ok, err := q.kv.Get(ctx, Bucket, entryID)
	if err != nil {
		return failure.Persistence("queue.mark_attempt", err)
	}
	if !ok {
		return nil
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("queue.mark_attempt: %w", err)
	}
	e.AttemptCount++
	if cause != nil {
		e.LastError = cause.Error()
	}

	data, err = json.Marshal(e)
	if err != nil {
		return fmt.Errorf("queue.mark_attempt: %w", err)
	}
	if err := q.kv.Set(ctx, Bucket, entryID, data); err != nil {
		return failure.Persistence("queue.mark_attempt", err)
	}
	return nil
}
