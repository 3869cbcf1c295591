package client

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	_ "github.com/magabrotheeeer/capitalized/docs"
	"github.com/magabrotheeeer/capitalized/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует маршруты статус-сервера.
func RegisterRoutes(r chi.Router, logger *slog.Logger, app *App) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	h := &handlers{
		log:      logger,
		session:  app.Session,
		profiles: app.Profiles,
		service:  app.Service,
	}

	r.Get("/healthz", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, rate.NewLimiter(1, 3)))
			r.Post("/login", h.login)
			r.Post("/verify", h.verify)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)
		})
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
}
