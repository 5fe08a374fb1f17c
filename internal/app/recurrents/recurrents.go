// Package recurrents собирает HTTP-приложение движка повторяющихся правил:
// хранилище, миграции, кеш, сервисы и маршруты.
package recurrents

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/recurrents-engine/internal/cache"
	"github.com/magabrotheeeer/recurrents-engine/internal/config"
	jwtlib "github.com/magabrotheeeer/recurrents-engine/internal/lib/jwt"
	"github.com/magabrotheeeer/recurrents-engine/internal/migrations"
	materializerservice "github.com/magabrotheeeer/recurrents-engine/internal/services/materializer"
	previewservice "github.com/magabrotheeeer/recurrents-engine/internal/services/preview"
	ruleservice "github.com/magabrotheeeer/recurrents-engine/internal/services/rule"
	"github.com/magabrotheeeer/recurrents-engine/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	jwtMaker := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	ruleService := ruleservice.NewRuleService(db, cacheRedis, logger)
	previewService := previewservice.NewPreviewService(logger)
	// Ручной запуск через API работает без брокера: события не публикуются.
	materializerService := materializerservice.NewMaterializerService(db, db, nil, logger,
		materializerservice.WithHorizonDays(cfg.Materializer.HorizonDays),
		materializerservice.WithIterationCap(cfg.Materializer.IterationCap),
		materializerservice.WithMaxWorkers(cfg.Materializer.MaxWorkers),
	)

	router := chi.NewRouter()

	RegisterRoutes(router, logger, ruleService, previewService, materializerService, jwtMaker)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}
