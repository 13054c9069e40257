package httpapi

import (
	"crypto/rsa"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voxhome/assist-service/internal/config"
)

// NewRouter creates the HTTP router
func NewRouter(h *Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(CORSMiddleware)

	// Public
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Load JWT public key
	pubKey, err := loadRSAPublicKey(cfg.JWTPublicKeyPath)
	if err != nil {
		// Log warning but continue - auth will fail if key missing
		pubKey = nil
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		if pubKey != nil {
			r.Use(Authenticate(pubKey))
		}

		// REST endpoints
		r.Post("/api/assist/converse", h.Converse)
		r.Get("/api/assist/tools", h.ListTools)
		r.Get("/api/assist/conversations", h.ListConversations)
		r.Get("/api/assist/conversations/{id}", h.GetConversation)
		r.Delete("/api/assist/conversations/{id}", h.DeleteConversation)

		// WebSocket endpoint
		r.Get("/ws/assist", h.HandleWebSocket)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		if pubKey != nil {
			r.Use(Authenticate(pubKey))
			r.Use(RequireRole("admin"))
		}

		r.Get("/api/assist/admin/status", h.AdminStatus)
	})

	return r
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(keyData)
}

// CORSMiddleware handles CORS
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
