// Package uow 把一次业务操作包装成单个数据库事务，并在瞬时故障时整体重试。
package uow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/store"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
	"projectflow/pkg/otel"
	"projectflow/pkg/util"
)

// Func 在事务中执行的闭包。可能被重复调用，必须重新读取状态且不能产生外部副作用
type Func func(ctx context.Context, repos store.Repos) error

// Runner 执行工作单元
type Runner interface {
	InTx(ctx context.Context, op string, fn Func) error
}

// Policy 重试策略
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy 最多尝试 3 次，线性退避 50ms
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: 50 * time.Millisecond}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Retry 执行 attempt，遇到瞬时故障时按策略重试。业务错误和非瞬时错误立即返回
func Retry(ctx context.Context, op string, policy Policy, log *zap.Logger, attempt func(ctx context.Context) error) error {
	policy = policy.normalized()
	log = logger.WithTrace(ctx, log)

	for n := 1; ; n++ {
		start := time.Now()
		attemptCtx, span := otel.UnitOfWorkSpan(ctx, op, n)
		err := attempt(attemptCtx)

		status := outcome(err)
		metrics.RecordUnitOfWork(op, status, time.Since(start))
		if err != nil && status == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err == nil {
			return nil
		}
		if status == "domain_error" || !util.IsTransient(err) || n >= policy.MaxAttempts {
			return err
		}

		metrics.IncrementUnitOfWorkRetry(op)
		wait := policy.Backoff * time.Duration(n)
		log.Warn("Transient failure in unit of work, retrying",
			zap.String("op", op),
			zap.Int("attempt", n),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsDomain(err):
		return "domain_error"
	default:
		return "error"
	}
}
