// Package cache keeps a copy of the active item listing in Redis so that
// browsing does not hit the database on every page load.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/closet/internal/model"
)

// ListingKey is the key the active listing is cached under.
const ListingKey = "closet:items:active"

// GenerationKey counts listing invalidations. A reader only stores the
// listing it loaded if the count has not moved since it started loading.
const GenerationKey = "closet:items:gen"

// ErrMiss is returned by a Backend when the key is absent.
var ErrMiss = errors.New("cache miss")

// Backend is a key/value store with expiry and a generation counter guarding
// writes. SetIfGeneration and Invalidate must each be atomic.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Generation returns the counter at genKey, zero if it is unset.
	Generation(ctx context.Context, genKey string) (int64, error)
	// SetIfGeneration stores value under key only while genKey still holds
	// gen, and reports whether it did.
	SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) (bool, error)
	// Invalidate increments genKey and deletes key.
	Invalidate(ctx context.Context, key, genKey string) error
}

// ItemStore is the item persistence the cache sits in front of.
type ItemStore interface {
	ListActiveItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	CreateItem(ctx context.Context, id string, f model.ItemFields) (*model.Item, error)
	UpdateItem(ctx context.Context, id string, f model.ItemFields) error
	MarkItemSold(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error
}

// ListingCache wraps an ItemStore. Reads of the active listing are served
// from the backend when possible; every write invalidates the cached copy.
// A listing loaded before a write finished is never stored after it.
// Cache failures are logged and never fail the request.
type ListingCache struct {
	ItemStore
	backend Backend
	ttl     time.Duration
}

// NewListingCache returns a ListingCache over store.
func NewListingCache(store ItemStore, backend Backend, ttl time.Duration) *ListingCache {
	return &ListingCache{ItemStore: store, backend: backend, ttl: ttl}
}

// ListActiveItems returns the cached listing, falling back to the store.
func (c *ListingCache) ListActiveItems(ctx context.Context) ([]model.Item, error) {
	data, err := c.backend.Get(ctx, ListingKey)
	if err == nil {
		var items []model.Item
		if err := json.Unmarshal(data, &items); err == nil {
			return items, nil
		}
		slog.Warn("discarding corrupt cached listing")
	} else if !errors.Is(err, ErrMiss) {
		slog.Warn("listing cache read failed, falling back to database", "error", err)
	}

	// Read the generation before the database so that a write landing in
	// between makes the store below a no-op.
	gen, genErr := c.backend.Generation(ctx, GenerationKey)
	if genErr != nil {
		slog.Warn("listing cache generation read failed", "error", genErr)
	}

	items, err := c.ItemStore.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return items, nil
	}

	data, err = json.Marshal(items)
	if err != nil {
		return items, nil
	}
	stored, err := c.backend.SetIfGeneration(ctx, ListingKey, data, c.ttl, GenerationKey, gen)
	switch {
	case err != nil:
		slog.Warn("listing cache write failed", "error", err)
	case !stored:
		slog.Debug("listing changed while loading, not caching")
	}
	return items, nil
}

// CreateItem creates the item and invalidates the listing.
func (c *ListingCache) CreateItem(ctx context.Context, id string, f model.ItemFields) (*model.Item, error) {
	item, err := c.ItemStore.CreateItem(ctx, id, f)
	c.invalidate(ctx)
	return item, err
}

// UpdateItem updates the item and invalidates the listing.
func (c *ListingCache) UpdateItem(ctx context.Context, id string, f model.ItemFields) error {
	err := c.ItemStore.UpdateItem(ctx, id, f)
	c.invalidate(ctx)
	return err
}

// MarkItemSold sells the item and invalidates the listing.
func (c *ListingCache) MarkItemSold(ctx context.Context, id string) error {
	err := c.ItemStore.MarkItemSold(ctx, id)
	c.invalidate(ctx)
	return err
}

// DeleteItem deletes the item and invalidates the listing.
func (c *ListingCache) DeleteItem(ctx context.Context, id string) error {
	err := c.ItemStore.DeleteItem(ctx, id)
	c.invalidate(ctx)
	return err
}

func (c *ListingCache) invalidate(ctx context.Context) {
	if err := c.backend.Invalidate(ctx, ListingKey, GenerationKey); err != nil {
		slog.Warn("listing cache invalidation failed", "error", err)
	}
}

// Redis is a Backend on a go-redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to addr and checks the server answers.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Get implements Backend.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

// setIfGeneration stores ARGV[1] under KEYS[1] (with a PX of ARGV[3] when
// positive) only while KEYS[2] equals ARGV[2].
var setIfGeneration = redis.NewScript(`
local gen = tonumber(redis.call("GET", KEYS[2]) or "0")
if gen ~= tonumber(ARGV[2]) then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// Generation implements Backend.
func (r *Redis) Generation(ctx context.Context, genKey string) (int64, error) {
	gen, err := r.client.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetIfGeneration implements Backend.
func (r *Redis) SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) (bool, error) {
	n, err := setIfGeneration.Run(ctx, r.client, []string{key, genKey}, value, gen, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate implements Backend.
func (r *Redis) Invalidate(ctx context.Context, key, genKey string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
