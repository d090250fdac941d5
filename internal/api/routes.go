// Package api wires the HTTP routes: public health and token endpoints,
// JWT-protected question answering and index administration.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/api/handlers"
	apmiddleware "github.com/mjsoler/ragmux/internal/api/middleware"
	"github.com/mjsoler/ragmux/internal/tool"
)

// Deps carries the wired services the routes need.
type Deps struct {
	Engine        handlers.AnswerService
	Registry      *tool.Registry
	Rebuilder     handlers.Rebuilder
	Corpora       []string
	AccessKeyHash string
	Log           *zap.Logger
}

// NewRouter creates and configures the chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// ===== PUBLIC ROUTES (no auth required) =====

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	tokenHandler := handlers.NewTokenHandler(deps.AccessKeyHash)
	r.Post("/auth/token", tokenHandler.Issue)

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	askHandler := handlers.NewAskHandler(deps.Engine)
	toolsHandler := handlers.NewToolsHandler(deps.Registry)
	reindexHandler := handlers.NewReindexHandler(deps.Rebuilder, deps.Corpora, deps.Log)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)

		r.Post("/ask", askHandler.Ask)    // POST /api/v1/ask
		r.Get("/tools", toolsHandler.List) // GET /api/v1/tools
		r.Post("/indexes/{corpus}/rebuild", reindexHandler.Rebuild)
	})

	return r
}
