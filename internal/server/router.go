// Package server exposes the guard over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/internal/rate"
	"github.com/MrEthical07/loginguard/jwt"
	lgmw "github.com/MrEthical07/loginguard/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps are the collaborators the handlers call.
type Deps struct {
	Guard   *loginguard.Guard
	Tokens  *jwt.Manager
	Limiter *rate.Limiter
	Metrics http.Handler
	Logger  *zap.Logger
}

// Options tune response behaviour.
type Options struct {
	// RevealLockout answers a locked identity with 429 and Retry-After
	// instead of the generic 401.
	RevealLockout bool
	// TrustProxy rewrites the peer address from X-Forwarded-For / X-Real-IP
	// before the throttle keys on it.
	TrustProxy     bool
	AdminAPIKey    string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates the chi router with middleware and routes.
func NewRouter(d Deps, o Options) chi.Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	h := &handler{guard: d.Guard, tokens: d.Tokens, logger: d.Logger, reveal: o.RevealLockout, now: time.Now}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if o.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(LoggerMiddleware(d.Logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(o.RequestTimeout))
	router.Use(lgmw.ClientContext)

	if len(o.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", lgmw.AdminKeyHeader},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "loginguard"})
	})
	if d.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	router.Route("/api/authentication", func(r chi.Router) {
		r.With(lgmw.Throttle(d.Limiter, d.Logger)).Post("/login", h.login)
		r.With(lgmw.RequireSession(d.Tokens)).Get("/session", h.session)

		r.Route("/lockouts/{identity}", func(r chi.Router) {
			r.Use(lgmw.RequireAdminKey(o.AdminAPIKey))
			r.Get("/", h.lockoutStatus)
			r.Delete("/", h.unlock)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "endpoint not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
