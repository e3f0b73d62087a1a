package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/app"
	"projectflow/internal/handler"
	"projectflow/internal/httpserver"
	"projectflow/pkg/config"
	"projectflow/pkg/logger"
	"projectflow/pkg/otel"
	"projectflow/pkg/outbox"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	// 2. Init tracing
	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    cfg.Otel.ServiceName,
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Insecure:       cfg.Otel.Insecure,
		Enabled:        cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	// 3. Init DB, MQ and services
	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("Application initialization failed", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Background loops: outbox dispatcher and overdue scan
	dispatcher := outbox.NewDispatcher(a.Outbox, a.Publisher, log).
		WithInterval(time.Duration(cfg.Outbox.IntervalMs) * time.Millisecond).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	if interval := cfg.Workflow.OverdueInterval(); interval > 0 {
		go a.Overdue.Start(ctx, interval)
	} else {
		log.Info("Overdue scan disabled")
	}

	// 5. Init handlers and router
	router := httpserver.NewRouter(httpserver.Handlers{
		Tasks:         handler.NewTaskHandler(a.Tasks, log),
		Todos:         handler.NewTodoHandler(a.Todos, log),
		Organizations: handler.NewOrganizationHandler(a.Organizations, log),
		Admin:         handler.NewAdminHandler(a.Replay, log),
	}, cfg.JWT.Secret, cfg.Otel.ServiceName, a.Pool)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 6. Run server
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
