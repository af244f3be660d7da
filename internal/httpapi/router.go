package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/gdprAuth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configures NewRouter.
type Options struct {
	// AllowedOrigins feeds the CORS handler. Empty disables CORS headers.
	AllowedOrigins []string
	// TrustProxy makes the client IP come from X-Forwarded-For.
	TrustProxy bool
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewRouter mounts the account API under /api/account.
func NewRouter(h *Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	// ---- Global Middleware ----
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestMetadata(opts.TrustProxy))
	r.Use(requestLogger(h.log))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", h.Health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api/account", func(r chi.Router) {
		// ---------------- Public ----------------
		r.Post("/login", h.Login)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Get("/verify-otp/{challengeID}", h.ChallengeStatus)
		r.Delete("/verify-otp/{challengeID}", h.CancelChallenge)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Post("/register", h.Register)
		r.Get("/confirm-email", h.ConfirmEmail)

		// ---------------- Authenticated ----------------
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.RequireAccess(h.engine))
			pr.Get("/me", h.Me)
		})
	})

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
