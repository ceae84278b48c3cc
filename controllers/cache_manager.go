package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	ProductListCachePrefix = "products:v:"
	CacheVersionKey        = "products:version"
)

// CacheClient is the subset of *redis.Client used for caching.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// CacheManager handles all Redis caching operations
type CacheManager struct {
	redis CacheClient
	ttl   time.Duration
}

func NewCacheManager(redis CacheClient, ttl time.Duration) *CacheManager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CacheManager{
		redis: redis,
		ttl:   ttl,
	}
}

// GetProductList retrieves a cached product list
func (cm *CacheManager) GetProductList(ctx context.Context, q *ListQuery) (*ProductListResponse, bool) {
	if cm == nil || cm.redis == nil {
		return nil, false
	}
	version, err := cm.getCacheVersion(ctx)
	if err != nil || version == 0 {
		return nil, false
	}

	cachedData, err := cm.redis.Get(ctx, cm.listCacheKey(version, q)).Result()
	if err != nil {
		return nil, false
	}

	var response ProductListResponse
	if err := json.Unmarshal([]byte(cachedData), &response); err != nil {
		zap.L().Warn("Failed to unmarshal cached product list", zap.Error(err))
		return nil, false
	}
	return &response, true
}

// SetProductListAsync caches a product list asynchronously
func (cm *CacheManager) SetProductListAsync(q *ListQuery, response *ProductListResponse) {
	if cm == nil || cm.redis == nil {
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := cm.getCacheVersion(bgCtx)
		if err != nil || version == 0 {
			return
		}

		jsonBytes, err := json.Marshal(response)
		if err != nil {
			zap.L().Warn("Failed to marshal product list for cache", zap.Error(err))
			return
		}
		if err := cm.redis.Set(bgCtx, cm.listCacheKey(version, q), jsonBytes, cm.ttl).Err(); err != nil {
			zap.L().Warn("Failed to cache product list", zap.Error(err))
		}
	}()
}

// Invalidate invalidates all product list caches by bumping the version
func (cm *CacheManager) Invalidate(ctx context.Context) error {
	newVersion, err := cm.redis.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	zap.L().Info("Cache invalidated", zap.Int64("new_version", newVersion))
	return nil
}

// getCacheVersion retrieves the current cache version with retry logic
func (cm *CacheManager) getCacheVersion(ctx context.Context) (int64, error) {
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		ver, err := cm.redis.Get(ctx, CacheVersionKey).Int64()
		if err == nil && ver > 0 {
			return ver, nil
		}

		if err == redis.Nil {
			if err := cm.redis.Set(ctx, CacheVersionKey, 1, 0).Err(); err == nil {
				return 1, nil
			}
		}

		if i < maxRetries-1 {
			time.Sleep(time.Millisecond * 50)
		}
	}

	return 0, fmt.Errorf("failed to get cache version after %d retries", maxRetries)
}

func (cm *CacheManager) listCacheKey(version int64, q *ListQuery) string {
	return fmt.Sprintf(
		"%s%d:s:%s:c:%s:q:%s:p:%d:l:%d",
		ProductListCachePrefix,
		version,
		q.StoreID,
		q.Category,
		q.Search,
		q.Page,
		q.PerPage,
	)
}
