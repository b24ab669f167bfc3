package api

import (
	"net/http"

	"github.com/erazemk/closet/internal/referral"
)

// ReferralsHandler handles the referral endpoints.
type ReferralsHandler struct {
	Referrals *referral.Service
}

// Referral actions accepted by POST /referrals.
const (
	actionRegister = "register"
	actionValidate = "validate"
	actionUse      = "use"
	actionIssue    = "issue"
)

type referralRequest struct {
	Action   string `json:"action"`
	Code     string `json:"code"`
	UserCode string `json:"userCode"`
	UsedCode string `json:"usedCode"`
}

// Post handles POST /referrals, dispatching on the action field.
func (h *ReferralsHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	switch req.Action {
	case actionRegister:
		if err := h.Referrals.Register(ctx, req.Code); err != nil {
			writeError(w, err)
			return
		}
		jsonSuccess(w, http.StatusOK, nil)

	case actionValidate:
		valid, err := h.Referrals.Validate(ctx, req.Code)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]bool{"valid": valid})

	case actionUse:
		if err := h.Referrals.Use(ctx, req.UserCode, req.UsedCode); err != nil {
			writeError(w, err)
			return
		}
		jsonSuccess(w, http.StatusOK, nil)

	case actionIssue:
		code, err := h.Referrals.Issue(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonSuccess(w, http.StatusOK, map[string]any{"code": code})

	default:
		// Unknown actions are answered like any other unsupported request.
		methodNotAllowed(w, r)
	}
}

// Count handles GET /referrals?userCode=. With detail=1 the redeemed codes
// are listed as well.
func (h *ReferralsHandler) Count(w http.ResponseWriter, r *http.Request) {
	userCode := r.URL.Query().Get("userCode")
	count, err := h.Referrals.DiscountCount(r.Context(), userCode)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("detail") != "1" {
		jsonResponse(w, http.StatusOK, map[string]int{"count": count})
		return
	}

	usages, err := h.Referrals.Usages(r.Context(), userCode)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"count": count, "usages": usages})
}
