package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"YieldVault/internal/model"
)

const (
	redisAssetsKey = "yieldvault:assets"
	redisVaultKey  = "yieldvault:vault:"
)

// RedisStore keeps vault records as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, asset string) (*model.AssetVault, error) {
	data, err := s.client.Get(ctx, redisVaultKey+asset).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", asset, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", asset, err)
	}
	var v model.AssetVault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", asset, err)
	}
	v.Normalize()
	return &v, nil
}

// Save writes the record and registers the asset in one MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, v *model.AssetVault) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisVaultKey+v.Asset, data, 0)
		pipe.SAdd(ctx, redisAssetsKey, v.Asset)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", v.Asset, err)
	}
	return nil
}

func (s *RedisStore) Assets(ctx context.Context) ([]string, error) {
	assets, err := s.client.SMembers(ctx, redisAssetsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(assets)
	return assets, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
