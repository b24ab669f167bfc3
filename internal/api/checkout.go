package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/closet/internal/inventory"
	"github.com/erazemk/closet/internal/model"
	"github.com/erazemk/closet/internal/pricing"
	"github.com/erazemk/closet/internal/referral"
)

// CheckoutHandler sells one item to one buyer and tells them what to pay.
type CheckoutHandler struct {
	Items         *inventory.Service
	Referrals     *referral.Service
	PaymentHandle string
}

type checkoutRequest struct {
	ID       itemID `json:"id"`
	UserCode string `json:"userCode"`
}

type checkoutResponse struct {
	Success bool        `json:"success"`
	Item    *model.Item `json:"item"`
	pricing.Quote
	PaymentInstruction string `json:"payment_instruction,omitempty"`
}

// Checkout handles POST /checkout. The buyer's discount is read before the
// sale so that a failure leaves the item listed. Once the item is sold the
// buyer's own code is registered so they can share it.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	id := string(req.ID)

	item, err := h.Items.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if item.Sold {
		writeError(w, model.ErrAlreadySold)
		return
	}

	count, err := h.Referrals.DiscountCount(ctx, req.UserCode)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Items.MarkSold(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	item.Sold = true

	if req.UserCode != "" {
		if err := h.Referrals.Register(ctx, req.UserCode); err != nil {
			// The sale already happened; do not report it as failed.
			slog.Error("failed to register buyer referral code", "code", req.UserCode, "error", err)
		}
	}

	quote := pricing.NewQuote(item.Price, count)
	resp := checkoutResponse{Success: true, Item: item, Quote: quote}
	if h.PaymentHandle != "" {
		resp.PaymentInstruction = fmt.Sprintf("Please send $%s via %s to complete your purchase.",
			quote.Display(), h.PaymentHandle)
	}

	jsonResponse(w, http.StatusOK, resp)
}
