package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/promovista/app/internal/http/handlers"
	"github.com/promovista/app/internal/middleware"
	"github.com/promovista/app/internal/session"
)

// NewRouter creates a new HTTP router with all routes configured. ipLimiter
// may be nil to disable per-client limits on actions.
func NewRouter(appHandler *handlers.AppHandler, store *session.Store, ipLimiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionScope(store))
		r.Get("/state", appHandler.HandleState)
		r.Delete("/alerts", appHandler.HandleDismissAlerts)

		r.Group(func(r chi.Router) {
			if ipLimiter != nil {
				r.Use(middleware.RateLimitMiddleware(ipLimiter, middleware.GetIPKey))
			}
			r.Post("/login", appHandler.HandleLogin)
			r.Route("/otp", func(r chi.Router) {
				r.Post("/verify", appHandler.HandleVerifyOTP)
				r.Post("/resend", appHandler.HandleResendOTP)
			})
			r.Post("/profile", appHandler.HandleProfile)
			r.Post("/signout", appHandler.HandleSignOut)
			r.Post("/back", appHandler.HandleBack)
		})
	})

	return r
}

// NewIPLimiter returns the per-client limiter for actions: 60 per minute
func NewIPLimiter() *middleware.RateLimiter {
	return middleware.NewRateLimiter(time.Minute, 60, nil)
}
