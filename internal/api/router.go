package api

import (
	"context"
	"net/http"
	"time"

	"github.com/erazemk/closet/internal/inventory"
	"github.com/erazemk/closet/internal/referral"
)

// TokenStore tracks revoked admin tokens.
type TokenStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Deps are the collaborators the API is built from.
type Deps struct {
	Items     *inventory.Service
	Referrals *referral.Service
	Tokens    TokenStore

	JWTSecret       string
	AdminSecretHash string
	PaymentHandle   string

	// Ping reports whether storage is reachable. Optional.
	Ping func(ctx context.Context) error
}

// NewRouter creates the API router with all endpoints registered. Every route
// is served both at the root and under /api/.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	itemsHandler := &ItemsHandler{Items: d.Items, Referrals: d.Referrals}
	referralsHandler := &ReferralsHandler{Referrals: d.Referrals}
	checkoutHandler := &CheckoutHandler{Items: d.Items, Referrals: d.Referrals, PaymentHandle: d.PaymentHandle}
	authHandler := &AuthHandler{Tokens: d.Tokens, JWTSecret: d.JWTSecret, AdminSecretHash: d.AdminSecretHash}

	admin := AdminMiddleware(d.JWTSecret, d.Tokens)

	// Items: browsing and buying are public, editing is admin only.
	mux.HandleFunc("GET /items", itemsHandler.List)
	mux.Handle("POST /items", admin(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /items", admin(http.HandlerFunc(itemsHandler.Update)))
	mux.HandleFunc("DELETE /items", itemsHandler.MarkSold)
	mux.HandleFunc("/items", methodNotAllowed)
	mux.Handle("DELETE /items/{id}", admin(http.HandlerFunc(itemsHandler.Remove)))
	mux.HandleFunc("/items/{id}", methodNotAllowed)

	// Referrals.
	mux.HandleFunc("GET /referrals", referralsHandler.Count)
	mux.HandleFunc("POST /referrals", referralsHandler.Post)
	mux.HandleFunc("/referrals", methodNotAllowed)

	// Checkout.
	mux.HandleFunc("POST /checkout", checkoutHandler.Checkout)
	mux.HandleFunc("/checkout", methodNotAllowed)

	// Admin session.
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.Handle("POST /auth/logout", admin(http.HandlerFunc(authHandler.Logout)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			if err := d.Ping(r.Context()); err != nil {
				jsonError(w, http.StatusServiceUnavailable, "storage unavailable")
				return
			}
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", mux))
	root.Handle("/", mux)
	return root
}
