package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig параметры подключения к Redis
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	KeyPrefix  string
}

// RedisCache реализует CacheRepo поверх Redis: кадры общие для нескольких процессов voxserver.
type RedisCache struct {
	client *redis.Client
	config RedisConfig

	totalRequests int64
	hits          int64
	misses        int64
}

// NewRedisCache подключается к Redis и проверяет соединение
func NewRedisCache(config RedisConfig) (*RedisCache, error) {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 30 * time.Second
	}
	if config.MaxTTL == 0 {
		config.MaxTTL = 1 * time.Hour
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "voxel:frame:"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	// Проверяем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s", config.Addr)
	return &RedisCache{client: rdb, config: config}, nil
}

// Get получает кадр из Redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	atomic.AddInt64(&r.totalRequests, 1)

	val, err := r.client.Get(ctx, r.config.KeyPrefix+key).Bytes()
	if err == nil {
		atomic.AddInt64(&r.hits, 1)
		return val, nil
	}
	atomic.AddInt64(&r.misses, 1)
	if err != redis.Nil {
		logging.Error("Redis Get error for key %s: %v", key, err)
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return nil, ErrCacheMiss
}

// Set сохраняет кадр; TTL ограничен MaxTTL
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	if ttl > r.config.MaxTTL {
		ttl = r.config.MaxTTL
	}
	if err := r.client.Set(ctx, r.config.KeyPrefix+key, value, ttl).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.config.KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		logging.Error("Error closing Redis connection: %v", err)
		return err
	}
	logging.Info("Redis cache closed")
	return nil
}

// GetMetrics возвращает текущие метрики кеша.
func (r *RedisCache) GetMetrics() *CacheMetrics {
	m := &CacheMetrics{
		TotalRequests: atomic.LoadInt64(&r.totalRequests),
		CacheHits:     atomic.LoadInt64(&r.hits),
		CacheMisses:   atomic.LoadInt64(&r.misses),
		LastUpdate:    time.Now(),
	}
	hitRatio(m)
	return m
}
