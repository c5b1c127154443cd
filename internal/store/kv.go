package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KV is the narrow persistence contract consumed by the asset cache and the
// pending-check queue. Values are opaque bytes grouped into buckets.
type KV interface {
	// Get returns the value for key, or ok=false if absent.
	Get(ctx context.Context, bucket, key string) (value []byte, ok bool, err error)

	// Set inserts or replaces the value for key. Replacing keeps the key's
	// original position in List order.
	Set(ctx context.Context, bucket, key string, value []byte) error

	// Add inserts the value only if key is absent and reports whether it did.
	Add(ctx context.Context, bucket, key string, value []byte) (inserted bool, err error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// List returns every item in the bucket in insertion order.
	List(ctx context.Context, bucket string) ([]Item, error)

	// Count returns the number of keys in the bucket.
	Count(ctx context.Context, bucket string) (int, error)
}

// Item is one key-value pair returned by List.
type Item struct {
	Key   string
	Value []byte
	Seq   int64
}

// Get implements KV.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv WHERE bucket = ? AND key = ?
	`, bucket, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return value, true, nil
}

// Set implements KV. Uses ON CONFLICT DO UPDATE so seq is preserved.
func (s *Store) Set(ctx context.Context, bucket, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (bucket, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, bucket, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Add implements KV. Uses ON CONFLICT DO NOTHING for idempotency.
func (s *Store) Add(ctx context.Context, bucket, key string, value []byte) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (bucket, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO NOTHING
	`, bucket, key, value, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("add %s/%s: %w", bucket, key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add %s/%s: rows affected: %w", bucket, key, err)
	}
	return affected > 0, nil
}

// Delete implements KV.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM kv WHERE bucket = ? AND key = ?
	`, bucket, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// List implements KV. Ordered by seq ASC, key ASC COLLATE BINARY so results
// are identical across restarts.
func (s *Store) List(ctx context.Context, bucket string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, seq
		FROM kv
		WHERE bucket = ?
		ORDER BY seq ASC, key COLLATE BINARY ASC
	`, bucket)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", bucket, err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Key, &it.Value, &it.Seq); err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", bucket, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: iterate: %w", bucket, err)
	}

	return items, nil
}

// Count implements KV.
func (s *Store) Count(ctx context.Context, bucket string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM kv WHERE bucket = ?
	`, bucket).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", bucket, err)
	}
	return n, nil
}
