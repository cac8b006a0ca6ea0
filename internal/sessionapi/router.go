package sessionapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/kalshi-dcm-demo/backend/internal/auth"
)

// NewRouter builds the full HTTP surface: public health check, the
// per-session order/websocket endpoints, and the JWT-protected ops
// surface under /ops.
func NewRouter(h *Handler, admin *AdminHandler, issuer *auth.TokenIssuer, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods("GET", "OPTIONS")
	api.HandleFunc("/sessions/{sessionID}/orders", h.PlaceOrder).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionID}/stream", h.ServeWS)

	api.HandleFunc("/admin/login", admin.Login).Methods("POST", "OPTIONS")

	ops := api.PathPrefix("/ops").Subrouter()
	ops.Use(issuer.Middleware)
	ops.HandleFunc("/halt", admin.Halt).Methods("POST", "OPTIONS")
	ops.HandleFunc("/resume", admin.Resume).Methods("POST", "OPTIONS")
	ops.HandleFunc("/audit", admin.Audit).Methods("GET", "OPTIONS")
	ops.HandleFunc("/pipeline", admin.Pipeline).Methods("GET", "OPTIONS")

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler(r)
}
