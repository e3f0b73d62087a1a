package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"projectflow/internal/mailer"
	"projectflow/internal/mqhandler"
	"projectflow/internal/service/notify"
	"projectflow/pkg/config"
	"projectflow/pkg/logger"
	"projectflow/pkg/mq"
	"projectflow/pkg/otel"
	redisclient "projectflow/pkg/redis"
	"projectflow/pkg/util"
)

const emailQueue = "notification.email.q"

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting notification worker...")

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    cfg.Otel.ServiceName + "-worker",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Insecure:       cfg.Otel.Insecure,
		Enabled:        cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis, log)
	defer rdb.Close()

	dedupTTL := time.Duration(cfg.Mail.DedupTTLSeconds) * time.Second
	deduper := util.NewDeduper(rdb, dedupTTL, log)
	retryCounter := util.NewRetryCounter(rdb, dedupTTL)

	// Init DLQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	if err := publisher.DeclareDLQ(notify.RoutingKeyEmail); err != nil {
		log.Fatal("failed to declare dlq", zap.Error(err))
	}

	// Init Handler
	emailHandler := mqhandler.NewNotificationEmailHandler(
		mailer.New(cfg.Mail, log),
		deduper,
		retryCounter,
		publisher,
		cfg.Mail.MaxRetries,
		log,
	)

	log.Info("Initializing email consumer", zap.String("queue", emailQueue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, emailQueue, notify.RoutingKeyEmail, log)
	if err != nil {
		log.Fatal("failed to init email consumer", zap.Error(err))
	}
	consumer.SetHandler(emailHandler.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			log.Error("email consumer failed", zap.Error(err))
			stop()
		}
	}()

	// Metrics endpoint
	metricsSrv := &http.Server{
		Addr:              cfg.Server.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	log.Info("Worker is ready to process messages")

	<-ctx.Done()
	log.Info("Shutting down worker")
	consumer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
