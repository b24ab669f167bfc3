// Package inventory is the item ledger: it lists items, lets the seller add,
// edit and remove them, and sells each item at most once.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/closet/internal/imaging"
	"github.com/erazemk/closet/internal/model"
)

// MaxNameLength bounds item names.
const MaxNameLength = 200

// Store persists items. MarkItemSold must be a single conditional write so
// that concurrent sales of one item resolve to exactly one winner.
type Store interface {
	ListActiveItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	CreateItem(ctx context.Context, id string, f model.ItemFields) (*model.Item, error)
	UpdateItem(ctx context.Context, id string, f model.ItemFields) error
	MarkItemSold(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error
}

// Service implements the item ledger on top of a Store.
type Service struct {
	store Store
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListActive returns every unsold item, newest first.
func (s *Service) ListActive(ctx context.Context) ([]model.Item, error) {
	return s.store.ListActiveItems(ctx)
}

// Get returns one item, sold or not.
func (s *Service) Get(ctx context.Context, id string) (*model.Item, error) {
	if id == "" {
		return nil, model.Invalid("id", "required")
	}
	return s.store.GetItem(ctx, id)
}

// Create lists a new item. An empty id gets a fresh UUID.
func (s *Service) Create(ctx context.Context, id string, f model.ItemFields) (*model.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	f, err := normalize(f)
	if err != nil {
		return nil, err
	}

	item, err := s.store.CreateItem(ctx, id, f)
	if err != nil {
		return nil, err
	}
	slog.Info("item listed", "id", item.ID, "name", item.Name, "price", item.Price.String())
	return item, nil
}

// Update overwrites an item's name, price, description and image.
func (s *Service) Update(ctx context.Context, id string, f model.ItemFields) error {
	if id == "" {
		return model.Invalid("id", "required")
	}

	f, err := normalize(f)
	if err != nil {
		return err
	}

	if err := s.store.UpdateItem(ctx, id, f); err != nil {
		return err
	}
	slog.Info("item updated", "id", id)
	return nil
}

// MarkSold takes an item off the listing. Of several concurrent callers
// exactly one succeeds; the others get model.ErrAlreadySold.
func (s *Service) MarkSold(ctx context.Context, id string) error {
	if id == "" {
		return model.Invalid("id", "required")
	}

	err := s.store.MarkItemSold(ctx, id)
	switch {
	case err == nil:
		slog.Info("item sold", "id", id)
	case errors.Is(err, model.ErrAlreadySold):
		slog.Warn("item already sold", "id", id)
	}
	return err
}

// Remove deletes an item outright.
func (s *Service) Remove(ctx context.Context, id string) error {
	if id == "" {
		return model.Invalid("id", "required")
	}

	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	slog.Info("item removed", "id", id)
	return nil
}

// normalize validates editable fields and canonicalizes them for storage.
func normalize(f model.ItemFields) (model.ItemFields, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return f, model.Invalid("name", "required")
	}
	if len(f.Name) > MaxNameLength {
		return f, model.Invalid("name", fmt.Sprintf("must be at most %d characters", MaxNameLength))
	}
	if f.Price.Cmp(decimal.Zero) <= 0 {
		return f, model.Invalid("price", "must be greater than zero")
	}

	f.Description = strings.TrimSpace(f.Description)

	image, err := imaging.Normalize(f.Image)
	if err != nil {
		return f, model.Invalid("image", err.Error())
	}
	f.Image = image

	return f, nil
}
