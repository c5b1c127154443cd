package remote

import (
	"context"
	"errors"

	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/failure"
)

// ErrNotConfigured is the cause carried by every Unavailable failure.
var ErrNotConfigured = errors.New("remote service not configured")

// Unavailable is the Service used when no base URL is configured. Every call
// fails transiently, so lookups fall back to local data and checks are queued.
type Unavailable struct{}

var _ Service = Unavailable{}

// GetAsset implements Service.
func (Unavailable) GetAsset(context.Context, string) (asset.ResolvedAsset, bool, error) {
	return asset.ResolvedAsset{}, false, failure.Transient("remote.get_asset", 0, ErrNotConfigured)
}

// SearchAssets implements Service.
func (Unavailable) SearchAssets(context.Context, string, int) ([]asset.ResolvedAsset, error) {
	return nil, failure.Transient("remote.search_assets", 0, ErrNotConfigured)
}

// SubmitCheck implements Service.
func (Unavailable) SubmitCheck(context.Context, asset.CheckRequest) error {
	return failure.Transient("remote.submit_check", 0, ErrNotConfigured)
}
