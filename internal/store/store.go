// Package store persists per-asset vault state.
package store

import (
	"context"
	"errors"

	"YieldVault/internal/model"
)

var ErrNotFound = errors.New("vault state not found")

// Store saves and loads whole vault records. The engine serializes writes per asset, so a
// Save is the atomic read-modify-write boundary.
type Store interface {
	Load(ctx context.Context, asset string) (*model.AssetVault, error)
	Save(ctx context.Context, v *model.AssetVault) error
	Assets(ctx context.Context) ([]string, error)
	Close() error
}
