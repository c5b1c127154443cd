// Package resolve turns a raw scan payload into a canonical asset record.
//
// Sources are consulted in a fixed order, each later source replacing the
// earlier result only when it produces a record:
//
//  1. the structured record embedded in the scan (provisional)
//  2. the local asset cache
//  3. the remote service, when connected (lookup by id, then search, limit 1)
//
// When none produces a record the result is a failure.NotFound error.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/failure"
	"github.com/roach88/fieldcheck/internal/remote"
)

// ErrResolveInProgress is returned when Resolve is called while another
// resolution is still running.
var ErrResolveInProgress = errors.New("resolution already in progress")

// Source names where a resolution's record came from.
type Source string

const (
	SourceScan   Source = "scan"
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
)

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Asset  asset.ResolvedAsset `json:"asset"`
	Source Source              `json:"source"`
}

// CacheSourced reports whether the record's authoritative origin is the local
// cache rather than the remote service.
func (r Resolution) CacheSourced() bool {
	return r.Source == SourceCache
}

// Cache is the subset of cache.Cache the resolver needs.
type Cache interface {
	Lookup(ctx context.Context, id string) (asset.ResolvedAsset, bool, error)
	Store(ctx context.Context, a asset.ResolvedAsset) error
	StoreAlias(ctx context.Context, alias, assetID string) error
}

// Connectivity reports whether the remote service should be tried.
type Connectivity interface {
	IsConnected() bool
}

// SearchLimit bounds the fallback search-by-text call.
const SearchLimit = 1

// Resolver runs resolutions one at a time.
type Resolver struct {
	cache  Cache
	remote remote.Service
	conn   Connectivity
	log    *slog.Logger

	running atomic.Bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// New creates a Resolver over explicitly constructed collaborators.
func New(c Cache, svc remote.Service, conn Connectivity, opts ...Option) *Resolver {
	r := &Resolver{
		cache:  c,
		remote: svc,
		conn:   conn,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves raw. Remote failures never fail the resolution; they fall
// back to the scan or cache result. A cache read failure is logged and
// treated as a miss. Refreshing the cache after a remote hit is best effort.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Resolution, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Resolution{}, ErrResolveInProgress
	}
	defer r.running.Store(false)

	payload := asset.ParseScan(raw)
	id := payload.Identifier()

	var (
		res   Resolution
		found bool
	)

	// 1. scan
	if a, ok := payload.Provisional(); ok {
		res, found = Resolution{Asset: a, Source: SourceScan}, true
	}

	// 2. cache
	if id != "" {
		cached, ok, err := r.cache.Lookup(ctx, id)
		switch {
		case err != nil:
			r.log.Warn("cache lookup failed", "identifier", id, "error", err)
		case ok:
			res, found = Resolution{Asset: cached, Source: SourceCache}, true
		}
	}

	// 3. remote
	if id != "" && r.conn.IsConnected() {
		if a, ok := r.lookupRemote(ctx, id); ok {
			res, found = Resolution{Asset: a, Source: SourceRemote}, true
			r.refreshCache(ctx, id, a)
		}
	}

	// 4. nothing
	if !found {
		r.log.Info("asset not found", "identifier", id, "connected", r.conn.IsConnected())
		return Resolution{}, failure.NotFound("resolve", id)
	}

	r.log.Debug("asset resolved", "asset_id", res.Asset.AssetID, "source", res.Source)
	return res, nil
}

// refreshCache stores a and, when it was found by another identifier, an
// alias so the same scan resolves offline later.
func (r *Resolver) refreshCache(ctx context.Context, id string, a asset.ResolvedAsset) {
	if err := r.cache.Store(ctx, a); err != nil {
		r.log.Warn("cache refresh failed", "asset_id", a.AssetID, "error", err)
		return
	}
	if id == a.AssetID {
		return
	}
	if err := r.cache.StoreAlias(ctx, id, a.AssetID); err != nil {
		r.log.Warn("cache alias failed", "identifier", id, "asset_id", a.AssetID, "error", err)
	}
}

// lookupRemote tries the direct lookup, then the bounded search.
func (r *Resolver) lookupRemote(ctx context.Context, id string) (asset.ResolvedAsset, bool) {
	a, ok, err := r.remote.GetAsset(ctx, id)
	if err != nil {
		r.log.Warn("remote lookup failed", "identifier", id, "error", err)
		return asset.ResolvedAsset{}, false
	}
	if ok && a.Valid() {
		return a.Normalized(), true
	}

	found, err := r.remote.SearchAssets(ctx, id, SearchLimit)
	if err != nil {
		r.log.Warn("remote search failed", "identifier", id, "error", err)
		return asset.ResolvedAsset{}, false
	}
	for _, a := range found {
		if a.Valid() {
			return a.Normalized(), true
		}
	}
	return asset.ResolvedAsset{}, false
}
