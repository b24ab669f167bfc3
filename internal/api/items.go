package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/closet/internal/inventory"
	"github.com/erazemk/closet/internal/model"
	"github.com/erazemk/closet/internal/pricing"
	"github.com/erazemk/closet/internal/referral"
)

// ItemsHandler handles the item endpoints.
type ItemsHandler struct {
	Items     *inventory.Service
	Referrals *referral.Service
}

// itemID accepts ids sent either as JSON strings or as numbers
// (storefronts commonly use a millisecond timestamp).
type itemID string

func (id *itemID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = itemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = itemID(n.String())
	return nil
}

type itemRequest struct {
	ID          itemID          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

func (req itemRequest) fields() model.ItemFields {
	return model.ItemFields{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Image:       req.Image,
	}
}

type idRequest struct {
	ID itemID `json:"id"`
}

// listedItem is an item as shown to one buyer.
type listedItem struct {
	model.Item
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`
}

// List handles GET /items. With ?userCode= each item also carries the
// buyer's discounted price.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Items.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	userCode := r.URL.Query().Get("userCode")
	if userCode == "" {
		jsonResponse(w, http.StatusOK, items)
		return
	}

	count, err := h.Referrals.DiscountCount(r.Context(), userCode)
	if err != nil {
		writeError(w, err)
		return
	}

	listed := make([]listedItem, len(items))
	for i, item := range items {
		final := pricing.Price(item.Price, count)
		listed[i] = listedItem{Item: item, FinalPrice: &final}
	}
	jsonResponse(w, http.StatusOK, listed)
}

// Create handles POST /items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Items.Create(r.Context(), string(req.ID), req.fields())
	if err != nil {
		writeError(w, err)
		return
	}

	jsonSuccess(w, http.StatusCreated, map[string]any{"id": item.ID})
}

// Update handles PUT /items.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Items.Update(r.Context(), string(req.ID), req.fields()); err != nil {
		writeError(w, err)
		return
	}

	jsonSuccess(w, http.StatusOK, nil)
}

// MarkSold handles DELETE /items: the item is sold and leaves the listing.
func (h *ItemsHandler) MarkSold(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Items.MarkSold(r.Context(), string(req.ID)); err != nil {
		writeError(w, err)
		return
	}

	jsonSuccess(w, http.StatusOK, nil)
}

// Remove handles DELETE /items/{id}: the item is deleted outright.
func (h *ItemsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.Items.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	jsonSuccess(w, http.StatusOK, nil)
}
