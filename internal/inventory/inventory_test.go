package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/closet/internal/db"
	"github.com/erazemk/closet/internal/model"
	"github.com/erazemk/closet/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(store.New(db.NewTestDB(t), db.SQLite))
}

func fields(name, price string) model.ItemFields {
	return model.ItemFields{Name: name, Price: decimal.RequireFromString(price)}
}

func TestCreateAssignsID(t *testing.T) {
	svc := newTestService(t)

	item, err := svc.Create(context.Background(), "", fields("  Linen Shirt ", "30"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uuid.Parse(item.ID); err != nil {
		t.Errorf("expected generated UUID, got %q", item.ID)
	}
	if item.Name != "Linen Shirt" {
		t.Errorf("expected trimmed name, got %q", item.Name)
	}
}

func TestCreateKeepsClientID(t *testing.T) {
	svc := newTestService(t)

	item, err := svc.Create(context.Background(), "1718000000000", fields("Skirt", "20"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.ID != "1718000000000" {
		t.Errorf("expected client id, got %q", item.ID)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		f     model.ItemFields
		field string
	}{
		{"empty name", fields("", "10"), "name"},
		{"blank name", fields("   ", "10"), "name"},
		{"zero price", fields("Coat", "0"), "price"},
		{"negative price", fields("Coat", "-1"), "price"},
		{"bad image", model.ItemFields{Name: "Coat", Price: decimal.NewFromInt(5), Image: "ftp://x/y.jpg"}, "image"},
	}

	for _, tt := range tests {
		_, err := svc.Create(ctx, "", tt.f)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
			continue
		}
		if ve.Field != tt.field {
			t.Errorf("%s: expected field %q, got %q", tt.name, tt.field, ve.Field)
		}
	}

	items, _ := svc.ListActive(ctx)
	if len(items) != 0 {
		t.Errorf("invalid items must not be stored, got %d", len(items))
	}
}

func TestListedUntilSold(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item, _ := svc.Create(ctx, "", fields("Sweater", "25"))

	items, _ := svc.ListActive(ctx)
	if len(items) != 1 || items[0].ID != item.ID {
		t.Fatalf("expected item to be listed, got %+v", items)
	}

	if err := svc.MarkSold(ctx, item.ID); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}

	items, _ = svc.ListActive(ctx)
	if len(items) != 0 {
		t.Errorf("expected sold item to be unlisted, got %+v", items)
	}
}

func TestConcurrentMarkSoldSingleWinner(t *testing.T) {
	svc := NewService(store.New(db.NewFileTestDB(t), db.SQLite))
	ctx := context.Background()

	item, err := svc.Create(ctx, "", fields("Sneakers", "80"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const buyers = 8
	start := make(chan struct{})
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = svc.MarkSold(ctx, item.ID)
		}()
	}
	close(start)
	wg.Wait()

	nilCount := 0
	soldCount := 0
	for _, err := range errs {
		if err == nil {
			nilCount++
		} else if errors.Is(err, model.ErrAlreadySold) {
			soldCount++
		}
	}
	if nilCount != 1 || soldCount != buyers-1 {
		t.Errorf("expected one success and %d ErrAlreadySold, got %v", buyers-1, errs)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item, _ := svc.Create(ctx, "", fields("Cap", "10"))

	if err := svc.Update(ctx, item.ID, fields("Red Cap", "12")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := svc.Get(ctx, item.ID)
	if got.Name != "Red Cap" {
		t.Errorf("expected updated name, got %q", got.Name)
	}

	if err := svc.Update(ctx, "missing", fields("X", "1")); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := svc.Remove(ctx, item.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := svc.Remove(ctx, item.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyIDRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var ve *model.ValidationError
	if err := svc.MarkSold(ctx, ""); !errors.As(err, &ve) {
		t.Errorf("MarkSold: expected ValidationError, got %v", err)
	}
	if err := svc.Update(ctx, "", fields("X", "1")); !errors.As(err, &ve) {
		t.Errorf("Update: expected ValidationError, got %v", err)
	}
	if err := svc.Remove(ctx, ""); !errors.As(err, &ve) {
		t.Errorf("Remove: expected ValidationError, got %v", err)
	}
}
