package app

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projectflow/internal/repository"
	"projectflow/internal/service/notify"
	"projectflow/internal/service/organization"
	"projectflow/internal/service/overdue"
	"projectflow/internal/service/task"
	"projectflow/internal/service/todo"
	"projectflow/internal/uow"
	"projectflow/pkg/circuitbreaker"
	"projectflow/pkg/config"
	"projectflow/pkg/db"
	"projectflow/pkg/metrics"
	"projectflow/pkg/mq"
	"projectflow/pkg/outbox"
)

// App 持有 API 进程和运维命令共用的依赖
type App struct {
	Config *config.AppConfig
	Logger *zap.Logger

	Pool      *pgxpool.Pool
	Publisher *mq.Publisher
	Outbox    *outbox.Repository

	Tasks         *task.Service
	Todos         *todo.Service
	Organizations *organization.Service
	Overdue       *overdue.Job
	Replay        *outbox.ReplayService
}

// New 按顺序初始化数据库、MQ 与各业务服务
func New(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	pool, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init publisher: %w", err)
	}

	outboxRepo := outbox.NewRepository(pool)

	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Email publish circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.SetCircuitBreakerState("email_publish", int(to))
	}

	dispatcher := notify.NewChannelDispatcher(
		repository.NewNotificationRepository(pool),
		publisher,
		circuitbreaker.NewCircuitBreaker(breakerCfg),
		outboxRepo,
		logger,
	)

	reads := repository.NewRepos(pool)
	sender := notify.NewSender(reads.Users, dispatcher, logger)

	runner := uow.NewPgxRunner(pool, repository.NewRepos, uow.Policy{
		MaxAttempts: cfg.Workflow.MaxAttempts,
		Backoff:     cfg.Workflow.RetryBackoff(),
	}, logger)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Pool:          pool,
		Publisher:     publisher,
		Outbox:        outboxRepo,
		Tasks:         task.NewService(runner, reads, sender, logger),
		Todos:         todo.NewService(runner, logger),
		Organizations: organization.NewService(runner, reads, sender, logger),
		Overdue:       overdue.NewJob(runner, sender, logger),
		Replay:        outbox.NewReplayService(outboxRepo, publisher, logger, cfg.Outbox.MaxRetries),
	}, nil
}

// Close 释放 MQ 与数据库连接
func (a *App) Close() {
	a.Publisher.Close()
	a.Pool.Close()
}
