package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/closet/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonSuccess writes {"success": true} plus any extra fields.
func jsonSuccess(w http.ResponseWriter, status int, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	jsonResponse(w, status, body)
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}

// maxBodyBytes leaves room for an inline item photo.
const maxBodyBytes = 12 << 20

// methodNotAllowed answers requests whose path exists but whose method does
// not.
func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// writeError maps a service error to its HTTP status and message. Storage
// failures are logged; everything else is an expected outcome.
func writeError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, "Item not found")
	case errors.Is(err, model.ErrAlreadySold):
		jsonError(w, http.StatusBadRequest, "Item already sold")
	case errors.Is(err, model.ErrInvalidCode):
		jsonError(w, http.StatusBadRequest, "Invalid referral code")
	case errors.Is(err, model.ErrAlreadyUsed):
		jsonError(w, http.StatusBadRequest, "Code already used")
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, err.Error())
	}
}
