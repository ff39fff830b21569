package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"YieldVault/internal/model"
)

// FileStore keeps one JSON document per asset in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(asset string) string {
	return filepath.Join(s.dir, "vault_"+strings.ToLower(asset)+".json")
}

// Load reads the vault state of asset.
func (s *FileStore) Load(_ context.Context, asset string) (*model.AssetVault, error) {
	data, err := os.ReadFile(s.path(asset))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", asset, ErrNotFound)
		}
		return nil, err
	}
	var v model.AssetVault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", asset, err)
	}
	v.Normalize()
	return &v, nil
}

// Save writes the vault state, replacing the previous file atomically.
func (s *FileStore) Save(_ context.Context, v *model.AssetVault) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(v.Asset) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(v.Asset))
}

// Assets lists every asset with saved state.
func (s *FileStore) Assets(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "vault_*.json"))
	if err != nil {
		return nil, err
	}
	var assets []string
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		var head struct {
			Asset string `json:"asset"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("decode %s: %w", m, err)
		}
		assets = append(assets, head.Asset)
	}
	sort.Strings(assets)
	return assets, nil
}

func (s *FileStore) Close() error { return nil }
