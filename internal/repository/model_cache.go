package repository

import (
	"context"
	"errors"
	"time"

	"EconCast/internal/domain/repository"
	"EconCast/pkg/cache"
)

// CachedModels implements ModelCache over a cache.Service.
type CachedModels struct {
	svc     cache.Service
	ttl     time.Duration
	lockTTL time.Duration
}

func NewCachedModels(svc cache.Service, ttl, lockTTL time.Duration) *CachedModels {
	return &CachedModels{svc: svc, ttl: ttl, lockTTL: lockTTL}
}

var _ repository.ModelCache = (*CachedModels)(nil)

func (m *CachedModels) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := m.svc.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (m *CachedModels) Claim(ctx context.Context, key string) (bool, error) {
	return m.svc.TryLock(ctx, key, m.lockTTL)
}

func (m *CachedModels) Release(ctx context.Context, key string) error {
	return m.svc.Unlock(ctx, key)
}

func (m *CachedModels) Put(ctx context.Context, key string, model []byte) error {
	return m.svc.Set(ctx, key, model, m.ttl)
}

// NoModelCache always misses and never grants the write lock.
type NoModelCache struct{}

func (NoModelCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoModelCache) Claim(context.Context, string) (bool, error)       { return false, nil }
func (NoModelCache) Release(context.Context, string) error             { return nil }
func (NoModelCache) Put(context.Context, string, []byte) error         { return nil }
