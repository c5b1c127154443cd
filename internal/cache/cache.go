// Package cache keeps previously resolved assets on the device so that
// resolution still works offline.
//
// It is a durability aid, not a performance cache: there is no eviction and
// stale entries are expected.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/failure"
	"github.com/roach88/fieldcheck/internal/store"
)

// Bucket is the KV bucket holding cached assets.
const Bucket = "assets"

// AliasBucket maps other scanned identifiers (serials, barcodes) to the asset
// id they resolved to.
const AliasBucket = "asset_aliases"

// Cache is the local asset cache, keyed by asset id, with aliases for the
// other identifiers an asset was scanned by.
type Cache struct {
	kv store.KV
}

// New creates a Cache over kv.
func New(kv store.KV) *Cache {
	return &Cache{kv: kv}
}

// Lookup returns the cached asset for id, trying id as an asset id first and
// then as an alias. A stored record that no longer decodes, or that lacks an
// asset id, is reported as absent.
func (c *Cache) Lookup(ctx context.Context, id string) (asset.ResolvedAsset, bool, error) {
	if id == "" {
		return asset.ResolvedAsset{}, false, nil
	}

	data, ok, err := c.kv.Get(ctx, Bucket, id)
	if err != nil {
		return asset.ResolvedAsset{}, false, failure.Persistence("cache.lookup", err)
	}
	if !ok {
		target, aliased, err := c.kv.Get(ctx, AliasBucket, id)
		if err != nil {
			return asset.ResolvedAsset{}, false, failure.Persistence("cache.lookup", err)
		}
		if !aliased || string(target) == id {
			return asset.ResolvedAsset{}, false, nil
		}
		data, ok, err = c.kv.Get(ctx, Bucket, string(target))
		if err != nil {
			return asset.ResolvedAsset{}, false, failure.Persistence("cache.lookup", err)
		}
		if !ok {
			return asset.ResolvedAsset{}, false, nil
		}
	}

	var a asset.ResolvedAsset
	if err := json.Unmarshal(data, &a); err != nil || !a.Valid() {
		return asset.ResolvedAsset{}, false, nil
	}
	return a.Normalized(), true, nil
}

// Store writes a under its asset id, replacing any previous record.
func (c *Cache) Store(ctx context.Context, a asset.ResolvedAsset) error {
	if !a.Valid() {
		return fmt.Errorf("cache.store: asset has no id")
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("cache.store: %w", err)
	}

	if err := c.kv.Set(ctx, Bucket, a.AssetID, data); err != nil {
		return failure.Persistence("cache.store", err)
	}
	return nil
}

// StoreAlias records that alias resolves to assetID. Aliases equal to the
// asset id are not stored.
func (c *Cache) StoreAlias(ctx context.Context, alias, assetID string) error {
	if alias == "" || assetID == "" {
		return fmt.Errorf("cache.store_alias: empty alias or asset id")
	}
	if alias == assetID {
		return nil
	}
	if err := c.kv.Set(ctx, AliasBucket, alias, []byte(assetID)); err != nil {
		return failure.Persistence("cache.store_alias", err)
	}
	return nil
}

// Len returns the number of cached assets.
func (c *Cache) Len(ctx context.Context) (int, error) {
	n, err := c.kv.Count(ctx, Bucket)
	if err != nil {
		return 0, failure.Persistence("cache.len", err)
	}
	return n, nil
}
