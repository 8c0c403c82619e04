package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pratik11500/Nest/internal/api/middleware"
	"github.com/pratik11500/Nest/internal/handlers"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil in
// development; rate limiting is skipped without it.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, jwtSecret []byte, redisClient *redis.Client, rateLimitWhitelist []string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // room for base64 profile pictures
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Identity before rate limiting so per-user keys apply when possible
	r.Use(middleware.OptionalAuth(jwtSecret))

	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger, rateLimitWhitelist)
		r.Use(limiter.Middleware)
	}

	// CORS - the browser client may be served from another origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Cache-Control"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Post("/api/auth", h.Auth)
	r.Get("/api/users", h.OnlineUsers)
	r.Get("/api/messages", h.ListMessages) // full history when authenticated
	r.Get("/api/sse", h.Stream)            // token travels as a query parameter

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret))

		r.Post("/api/messages", h.CreateMessage)
		r.Patch("/api/messages/{id}", h.EditMessage)
		r.Post("/api/typing", h.Typing)
		r.Post("/api/heartbeat", h.Heartbeat)
		r.Get("/api/me", h.Me)
		r.Patch("/api/account", h.UpdateAccount)
		r.Delete("/api/account", h.DeleteAccount)
		r.Delete("/api/chat", h.ClearChat)
	})

	return r
}
