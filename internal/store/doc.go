// Package store provides SQLite-backed durable key-value storage for the
// asset cache and the pending-check queue.
//
// # Buckets
//
//   - assets: asset id -> JSON ResolvedAsset
//   - asset_aliases: scanned serial or barcode -> asset id
//   - pending_checks: entry id -> JSON queue entry
//   - pending_checks_unreadable: entries that no longer decode
//
// # Migrations
//
// user_version counts applied migrations. Each runs in its own transaction
// together with the version bump.
//
// # Ordering
//
// Every key gets a seq INTEGER on first insertion. Updates keep it, so List
// returns keys in insertion order: ORDER BY seq ASC, key ASC COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: a returned write is on disk
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Mutations are per key. There is no bulk rewrite, so a drain iterating the
// queue never clobbers an entry enqueued concurrently.
package store
