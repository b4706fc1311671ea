/**
 * @description
 * Entry point for the reminder service. Boots configuration, the database
 * pool, the message bus, the mail and subscription clients, the cron sweep
 * scheduler, and the HTTP API, then waits for a termination signal.
 */
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/invoiceflow/reminder-service/internal/api"
	"github.com/invoiceflow/reminder-service/internal/app"
	"github.com/invoiceflow/reminder-service/internal/config"
	"github.com/invoiceflow/reminder-service/internal/domain"
	"github.com/invoiceflow/reminder-service/internal/store"
	"github.com/invoiceflow/reminder-service/pkg/mailclient"
	"github.com/invoiceflow/reminder-service/pkg/rabbitmq"
	"github.com/invoiceflow/reminder-service/pkg/subscriptionclient"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	pgConfig.MaxConns = 50
	pgConfig.MinConns = 5
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewRepository(dbpool)
	mailer := mailclient.NewClient(cfg.MailProviderURL, cfg.MailProviderAPIKey, cfg.MailFromAddress)
	gate := subscriptionclient.NewClient(cfg.SubscriptionServiceURL, cfg.InternalAPIKey)

	// Queue dispatch is optional; without it the dispatcher sends inline.
	var publisher app.QueuePublisher
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("failed to connect to RabbitMQ, reminders will send synchronously", "error", err)
		} else {
			publisher = producer
			defer producer.Close()
		}
	}

	var limiter app.SendLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid REDIS_URL, outbound sends will be unthrottled", "error", err)
		} else {
			limiter = app.NewRedisSendLimiter(redis.NewClient(opts), "invoiceflow:send_limit")
		}
	}

	service := app.NewService(repository, mailer, gate, publisher, limiter, logger, cfg)

	if cfg.RabbitMQURL != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("failed to start RabbitMQ consumer, queued jobs will not be processed", "error", err)
		} else {
			defer consumer.Close()
			startConsumers(consumer, service, logger)
		}
	}

	scheduler := app.NewScheduler(service, logger, cfg)
	scheduler.Start()
	logger.Info("reminder sweep scheduler started")

	handler := api.NewHandler(service)
	router := api.NewRouter(handler, cfg.JWKSURL, cfg.InternalAPIKey)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

// startConsumers binds the queue handlers: reminder send jobs plus the
// payment events that cancel outstanding reminders.
func startConsumers(consumer *rabbitmq.Consumer, service *app.Service, logger *slog.Logger) {
	bindings := map[string]func([]byte) bool{
		domain.RoutingKeyReminderSend: func(body []byte) bool {
			var job domain.ReminderJob
			if err := unmarshalEvent(body, &job); err != nil {
				logger.Error("invalid reminder job payload", "error", err)
				return true // malformed payloads are not retryable
			}
			if err := service.HandleReminderJob(context.Background(), job); err != nil {
				logger.Error("reminder job failed", "invoice_id", job.InvoiceID, "error", err)
				return false
			}
			return true
		},
		domain.RoutingKeyInvoiceSettled:    settleHandler(service, logger, ""),
		domain.RoutingKeyInvoiceWrittenOff: settleHandler(service, logger, "invoice written off; reminders cancelled"),
	}

	if err := consumer.ConsumeWithBindings(domain.EventsExchange, "reminder-service.events", bindings); err != nil {
		logger.Error("failed to start event consumers", "error", err)
	} else {
		logger.Info("event consumers started")
	}
}

func unmarshalEvent(body []byte, out interface{}) error {
	return json.Unmarshal(body, out)
}

func settleHandler(service *app.Service, logger *slog.Logger, defaultReason string) func([]byte) bool {
	return func(body []byte) bool {
		var event domain.InvoiceSettledEvent
		if err := unmarshalEvent(body, &event); err != nil {
			logger.Error("invalid settle event payload", "error", err)
			return true
		}
		reason := event.Reason
		if reason == "" {
			reason = defaultReason
		}
		if _, err := service.SettleInvoice(context.Background(), event.InvoiceID, reason); err != nil {
			logger.Error("failed to cancel reminders for settled invoice", "invoice_id", event.InvoiceID, "error", err)
			return false
		}
		return true
	}
}
