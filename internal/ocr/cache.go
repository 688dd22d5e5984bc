package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"callouts/internal/logger"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// DefaultCacheTTL is used when the cache is enabled without a TTL.
const DefaultCacheTTL = 24 * time.Hour

// Store is the key/value backend of a CachedService.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis instance at url (redis://host:port/db).
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	const op = "NewRedisStore"

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, NewOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("invalid REDIS_URL: %v", err))
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, WrapOCRError(op, err, "redis ping failed")
	}

	return &RedisStore{client: client, prefix: "callouts:ocr:"}, nil
}

// Get retrieves a value from cache.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores a value in cache with TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CachedService memoizes another Service by page content. Cache failures are
// logged and never fail the OCR call.
type CachedService struct {
	next  Service
	store Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedService wraps next with a result cache.
func NewCachedService(next Service, store Store, ttl time.Duration) *CachedService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedService{
		next:  next,
		store: store,
		ttl:   ttl,
		log:   logger.WithComponent("ocr-cache"),
	}
}

// Name reports the wrapped engine's name.
func (c *CachedService) Name() string { return c.next.Name() }

// DetectText returns a cached result when present, else delegates and stores
// the successful result.
func (c *CachedService) DetectText(ctx context.Context, in Input) (*PageText, error) {
	key := CacheKey(c.next.Name(), in)

	if raw, err := c.store.Get(ctx, key); err == nil {
		var cached PageText
		if err := json.Unmarshal(raw, &cached); err == nil {
			c.log.Debug().Str("key", key).Msg("OCR cache hit")
			return &cached, nil
		}
		c.log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn().Err(err).Str("key", key).Msg("OCR cache lookup failed")
	}

	result, err := c.next.DetectText(ctx, in)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("OCR cache store failed")
		}
	}
	return result, nil
}

// CacheKey identifies an OCR input for one engine.
func CacheKey(engine string, in Input) string {
	h := sha256.New()
	h.Write([]byte(engine))
	h.Write([]byte{0})
	h.Write([]byte(in.MimeType))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(in.PageIndex)))
	h.Write([]byte{0})
	h.Write(in.Content)
	return hex.EncodeToString(h.Sum(nil))
}
