// Package remote is the boundary to the asset service. The core consumes the
// Service interface; Client is the HTTP adapter.
package remote

import (
	"context"

	"github.com/roach88/fieldcheck/internal/asset"
)

// Service is the remote asset service contract.
//
// Lookup methods report absence with ok=false (or an empty slice) and a nil
// error. Errors are failure.Error values: VALIDATION_REJECTED for client-error
// responses, TRANSIENT_FAILURE for everything that might succeed on retry.
type Service interface {
	// GetAsset looks an asset up by id.
	GetAsset(ctx context.Context, id string) (a asset.ResolvedAsset, ok bool, err error)

	// SearchAssets runs a free-text search, returning at most limit assets.
	SearchAssets(ctx context.Context, query string, limit int) ([]asset.ResolvedAsset, error)

	// SubmitCheck records a check. A nil error means the service accepted it.
	SubmitCheck(ctx context.Context, req asset.CheckRequest) error
}
