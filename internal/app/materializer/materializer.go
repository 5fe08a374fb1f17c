// Package materializer собирает фоновое приложение движка: подключение
// к брокеру, хранилищу и запуск материализации по cron-расписанию.
package materializer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/recurrents-engine/internal/config"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
	"github.com/magabrotheeeer/recurrents-engine/internal/rabbitmq"
	materializerservice "github.com/magabrotheeeer/recurrents-engine/internal/services/materializer"
	"github.com/magabrotheeeer/recurrents-engine/internal/storage/repository"
)

// App представляет фоновое приложение движка материализации.
type App struct {
	materializerService *materializerservice.MaterializerService
	cronSpec            string
	conn                *amqp.Connection
	ch                  *amqp.Channel
	logger              *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения движка.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetRecurrentsQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	publisher := rabbitmq.NewPublisher(ch)
	materializerService := materializerservice.NewMaterializerService(db, db, publisher, logger,
		materializerservice.WithHorizonDays(cfg.Materializer.HorizonDays),
		materializerservice.WithIterationCap(cfg.Materializer.IterationCap),
		materializerservice.WithMaxWorkers(cfg.Materializer.MaxWorkers),
	)

	return &App{
		materializerService: materializerService,
		cronSpec:            cfg.Materializer.CronSpec,
		conn:                conn,
		ch:                  ch,
		logger:              logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает материализацию по расписанию. Первый прогон выполняется
// сразу при старте, чтобы не ждать ближайшего срабатывания cron.
func (a *App) Run(ctx context.Context) error {
	runOnce := func() {
		if _, err := a.materializerService.Run(ctx, models.RunOptions{}); err != nil {
			a.logger.Error("materializer run failed", sl.Err(err))
		}
	}

	runOnce()

	c := cron.New()
	if _, err := c.AddFunc(a.cronSpec, runOnce); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", a.cronSpec, err)
	}
	c.Start()

	<-ctx.Done()

	a.logger.Info("shutting down materializer")

	cronCtx := c.Stop()
	<-cronCtx.Done()

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
