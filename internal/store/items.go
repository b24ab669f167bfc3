package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/erazemk/closet/internal/model"
)

const itemColumns = `id, name, price, description, image, sold, created_at, updated_at, sold_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.Item, error) {
	item := &model.Item{}
	var soldAt sql.NullTime
	if err := row.Scan(&item.ID, &item.Name, &item.Price, &item.Description, &item.Image,
		&item.Sold, &item.CreatedAt, &item.UpdatedAt, &soldAt); err != nil {
		return nil, err
	}
	if soldAt.Valid {
		t := soldAt.Time
		item.SoldAt = &t
	}
	return item, nil
}

// CreateItem inserts a new unsold item with the given id.
// An id that is already taken yields a ValidationError.
func (s *Store) CreateItem(ctx context.Context, id string, f model.ItemFields) (*model.Item, error) {
	now := s.Now()
	result, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO items (id, name, price, description, image, sold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, FALSE, ?, ?)
		 ON CONFLICT (id) DO NOTHING`),
		id, f.Name, f.Price.String(), f.Description, f.Image, now, now,
	)
	if err != nil {
		return nil, model.Storage("creating item", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, model.Storage("creating item", err)
	}
	if n == 0 {
		return nil, model.Invalid("id", "item id already exists")
	}

	return s.GetItem(ctx, id)
}

// GetItem returns an item by ID, sold or not.
func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		`SELECT `+itemColumns+` FROM items WHERE id = ?`), id,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, model.Storage("getting item", err)
	}
	return item, nil
}

// ListActiveItems returns all unsold items, newest first.
func (s *Store) ListActiveItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE sold = FALSE ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, model.Storage("listing items", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, model.Storage("scanning item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Storage("listing items", err)
	}
	return items, nil
}

// UpdateItem overwrites an item's editable fields. Sold state and creation
// time are never touched.
func (s *Store) UpdateItem(ctx context.Context, id string, f model.ItemFields) error {
	result, err := s.db.ExecContext(ctx, s.q(
		`UPDATE items SET name = ?, price = ?, description = ?, image = ?, updated_at = ?
		 WHERE id = ?`),
		f.Name, f.Price.String(), f.Description, f.Image, s.Now(), id,
	)
	if err != nil {
		return model.Storage("updating item", err)
	}
	return requireAffected(result, "updating item")
}

// MarkItemSold flips an unsold item to sold in a single conditional update.
// When several callers race for the same item exactly one succeeds; the
// rest get ErrAlreadySold.
func (s *Store) MarkItemSold(ctx context.Context, id string) error {
	now := s.Now()
	result, err := s.db.ExecContext(ctx, s.q(
		`UPDATE items SET sold = TRUE, sold_at = ?, updated_at = ?
		 WHERE id = ? AND sold = FALSE`),
		now, now, id,
	)
	if err != nil {
		return model.Storage("marking item sold", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return model.Storage("marking item sold", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := s.itemExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrAlreadySold
}

// DeleteItem physically removes an item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM items WHERE id = ?`), id)
	if err != nil {
		return model.Storage("deleting item", err)
	}
	return requireAffected(result, "deleting item")
}

func (s *Store) itemExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM items WHERE id = ?`), id,
	).Scan(&count)
	if err != nil {
		return false, model.Storage("checking item", err)
	}
	return count > 0, nil
}

// requireAffected maps a write that touched no rows to ErrNotFound.
func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return model.Storage(op, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
