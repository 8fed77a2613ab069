// Package api serves the dashboard session over JSON HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"product-insights-go/internal/logger"
	"product-insights-go/internal/session"
)

type Options struct {
	CORSOrigins       []string
	RateLimitRequests int // 0 disables rate limiting
	RateLimitWindow   time.Duration
}

type Server struct {
	sess *session.Session
	log  *logger.Logger
}

func NewServer(sess *session.Session, log *logger.Logger) *Server {
	return &Server{sess: sess, log: log}
}

// Router wires middleware and routes.
func (s *Server) Router(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(metricsMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(opts.CORSOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimitRequests > 0 {
			window := opts.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.Limit(opts.RateLimitRequests, window,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				}),
			))
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Get("/{userID}", s.handleGetUser)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Put("/user", s.handleSelectUser)
			r.Put("/mode", s.handleSetMode)
			r.Post("/reset", s.handleReset)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/", s.handleRecommendations)
			r.Post("/refresh", s.handleRefresh)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/", s.handleAnalytics)
			r.Get("/performance", s.handlePerformance)
			r.Get("/insights", s.handleInsights)
			r.Get("/export", s.handleExport)
		})

		r.Post("/products/{productID}/actions", s.handleAction)
		r.Get("/actions", s.handleActions)

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", s.handleTranscript)
			r.Post("/", s.handleAsk)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	})
}
