// Package recurrents предоставляет маршруты для основного приложения.
package recurrents

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/health"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/cancel"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/create"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/instances"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/list"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/pause"
	previewhandler "github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/preview"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/read"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/remove"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/resume"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/skip"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/rule/update"
	runhandler "github.com/magabrotheeeer/recurrents-engine/internal/http/handlers/run"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/middlewarectx"
	materializerservice "github.com/magabrotheeeer/recurrents-engine/internal/services/materializer"
	previewservice "github.com/magabrotheeeer/recurrents-engine/internal/services/preview"
	ruleservice "github.com/magabrotheeeer/recurrents-engine/internal/services/rule"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, ruleService *ruleservice.RuleService, previewService *previewservice.PreviewService, materializerService *materializerservice.MaterializerService, tokenParser middlewarectx.TokenParser) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger).ServeHTTP)
		r.Post("/rules/preview", previewhandler.New(logger, previewService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenParser, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/rules", create.New(logger, ruleService).ServeHTTP)
			r.Get("/rules", list.New(logger, ruleService).ServeHTTP)
			r.Get("/rules/{id}", read.New(logger, ruleService).ServeHTTP)
			r.Patch("/rules/{id}", update.New(logger, ruleService).ServeHTTP)
			r.Delete("/rules/{id}", remove.New(logger, ruleService).ServeHTTP)
			r.Post("/rules/{id}/pause", pause.New(logger, ruleService).ServeHTTP)
			r.Post("/rules/{id}/resume", resume.New(logger, ruleService).ServeHTTP)
			r.Post("/rules/{id}/cancel", cancel.New(logger, ruleService).ServeHTTP)
			r.Post("/rules/{id}/skip", skip.New(logger, ruleService).ServeHTTP)
			r.Get("/rules/{id}/instances", instances.New(logger, ruleService).ServeHTTP)
			r.Post("/run", runhandler.New(logger, materializerService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
