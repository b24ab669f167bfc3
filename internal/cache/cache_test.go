package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"

	"github.com/erazemk/closet/internal/db"
	"github.com/erazemk/closet/internal/model"
	"github.com/erazemk/closet/internal/store"
)

// memBackend is an in-process Backend for tests.
type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	gens    map[string]int64
	failGet bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}, gens: map[string]int64{}}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *memBackend) Generation(_ context.Context, genKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[genKey], nil
}

func (m *memBackend) SetIfGeneration(_ context.Context, key string, value []byte, _ time.Duration, genKey string, gen int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[genKey] != gen {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memBackend) Invalidate(_ context.Context, key, genKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[genKey]++
	delete(m.data, key)
	return nil
}

func (m *memBackend) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func setup(t *testing.T) (*ListingCache, *memBackend) {
	t.Helper()
	backend := newMemBackend()
	s := store.New(db.NewTestDB(t), db.SQLite)
	return NewListingCache(s, backend, time.Minute), backend
}

func item(name string) model.ItemFields {
	return model.ItemFields{Name: name, Price: decimal.NewFromInt(10)}
}

func TestListingIsCached(t *testing.T) {
	c, backend := setup(t)
	ctx := context.Background()

	c.CreateItem(ctx, "a", item("Vest"))

	items, err := c.ListActiveItems(ctx)
	if err != nil {
		t.Fatalf("ListActiveItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if !backend.has(ListingKey) {
		t.Fatal("expected listing to be cached after a read")
	}

	cached, _ := c.ListActiveItems(ctx)
	if len(cached) != 1 || cached[0].ID != "a" || !cached[0].Price.Equal(decimal.NewFromInt(10)) {
		t.Errorf("unexpected cached listing: %+v", cached)
	}
}

func TestWritesInvalidate(t *testing.T) {
	c, backend := setup(t)
	ctx := context.Background()

	c.CreateItem(ctx, "a", item("Vest"))
	c.ListActiveItems(ctx)

	if err := c.MarkItemSold(ctx, "a"); err != nil {
		t.Fatalf("MarkItemSold: %v", err)
	}
	if backend.has(ListingKey) {
		t.Fatal("expected sale to invalidate the listing")
	}

	items, _ := c.ListActiveItems(ctx)
	if len(items) != 0 {
		t.Errorf("sold item still listed: %+v", items)
	}

	c.CreateItem(ctx, "b", item("Tee"))
	if backend.has(ListingKey) {
		t.Error("expected create to invalidate the listing")
	}

	c.ListActiveItems(ctx)
	c.UpdateItem(ctx, "b", item("Long Tee"))
	if backend.has(ListingKey) {
		t.Error("expected update to invalidate the listing")
	}

	c.ListActiveItems(ctx)
	c.DeleteItem(ctx, "b")
	if backend.has(ListingKey) {
		t.Error("expected delete to invalidate the listing")
	}
}

func TestBackendFailureFallsBack(t *testing.T) {
	c, backend := setup(t)
	ctx := context.Background()
	backend.failGet = true

	c.CreateItem(ctx, "a", item("Vest"))

	items, err := c.ListActiveItems(ctx)
	if err != nil {
		t.Fatalf("expected fallback to database, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestErrorsPassThrough(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	c.CreateItem(ctx, "a", item("Vest"))
	c.MarkItemSold(ctx, "a")

	if err := c.MarkItemSold(ctx, "a"); !errors.Is(err, model.ErrAlreadySold) {
		t.Errorf("expected ErrAlreadySold, got %v", err)
	}
}

// pausingStore holds the first ListActiveItems call after its database read
// until resume is closed.
type pausingStore struct {
	ItemStore
	once   sync.Once
	loaded chan struct{}
	resume chan struct{}
}

func (p *pausingStore) ListActiveItems(ctx context.Context) ([]model.Item, error) {
	items, err := p.ItemStore.ListActiveItems(ctx)
	p.once.Do(func() {
		close(p.loaded)
		<-p.resume
	})
	return items, err
}

func TestSaleDuringLoadIsNotCached(t *testing.T) {
	backend := newMemBackend()
	s := store.New(db.NewTestDB(t), db.SQLite)
	paused := &pausingStore{ItemStore: s, loaded: make(chan struct{}), resume: make(chan struct{})}
	c := NewListingCache(paused, backend, time.Minute)
	ctx := context.Background()

	if _, err := s.CreateItem(ctx, "x", item("Coat")); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	done := make(chan []model.Item)
	go func() {
		items, _ := c.ListActiveItems(ctx)
		done <- items
	}()

	// The reader has loaded the listing with the coat still unsold.
	<-paused.loaded
	if err := c.MarkItemSold(ctx, "x"); err != nil {
		t.Fatalf("MarkItemSold: %v", err)
	}
	close(paused.resume)

	if stale := <-done; len(stale) != 1 {
		t.Fatalf("expected the in-flight read to see 1 item, got %d", len(stale))
	}
	if backend.has(ListingKey) {
		t.Fatal("listing loaded before the sale must not be cached")
	}

	items, err := c.ListActiveItems(ctx)
	if err != nil {
		t.Fatalf("ListActiveItems: %v", err)
	}
	for _, it := range items {
		if it.ID == "x" {
			t.Fatalf("sold item still in active listing: %+v", it)
		}
	}
}

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisGenerationGuard(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	if _, err := r.Get(ctx, ListingKey); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	gen, err := r.Generation(ctx, GenerationKey)
	if err != nil || gen != 0 {
		t.Fatalf("Generation = %d, %v; want 0", gen, err)
	}

	ok, err := r.SetIfGeneration(ctx, ListingKey, []byte(`[]`), time.Minute, GenerationKey, gen)
	if err != nil || !ok {
		t.Fatalf("SetIfGeneration at current generation = %v, %v", ok, err)
	}
	if data, err := r.Get(ctx, ListingKey); err != nil || string(data) != "[]" {
		t.Fatalf("Get = %q, %v", data, err)
	}

	if err := r.Invalidate(ctx, ListingKey, GenerationKey); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := r.Get(ctx, ListingKey); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected invalidate to delete the listing, got %v", err)
	}

	ok, err = r.SetIfGeneration(ctx, ListingKey, []byte(`["stale"]`), time.Minute, GenerationKey, gen)
	if err != nil {
		t.Fatalf("SetIfGeneration: %v", err)
	}
	if ok {
		t.Fatal("expected write with an old generation to be refused")
	}
	if _, err := r.Get(ctx, ListingKey); !errors.Is(err, ErrMiss) {
		t.Fatalf("stale listing was stored: %v", err)
	}

	if gen, _ := r.Generation(ctx, GenerationKey); gen != 1 {
		t.Errorf("expected generation 1 after one invalidation, got %d", gen)
	}
}

func TestListingCacheOnRedis(t *testing.T) {
	r := newTestRedis(t)
	s := store.New(db.NewTestDB(t), db.SQLite)
	c := NewListingCache(s, r, time.Minute)
	ctx := context.Background()

	c.CreateItem(ctx, "a", item("Vest"))
	if items, _ := c.ListActiveItems(ctx); len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if _, err := r.Get(ctx, ListingKey); err != nil {
		t.Fatalf("expected listing to be cached: %v", err)
	}

	c.MarkItemSold(ctx, "a")
	if items, _ := c.ListActiveItems(ctx); len(items) != 0 {
		t.Errorf("sold item still listed: %+v", items)
	}
}
