package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single listed product. Each item is unique; buying it takes it
// off the active listing.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Sold        bool            `json:"sold"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	SoldAt      *time.Time      `json:"sold_at,omitempty"`
}

// ItemFields holds the admin-editable fields of an item.
type ItemFields struct {
	Name        string
	Price       decimal.Decimal
	Description string
	Image       string
}
