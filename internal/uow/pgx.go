package uow

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"projectflow/internal/store"
	"projectflow/pkg/db"
)

// TxBeginner 由 *pgxpool.Pool 实现
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// RepoFactory 把事务绑定到一组仓储上
type RepoFactory func(q db.DBTX) store.Repos

// PgxRunner 基于 pgx 事务的 Runner
type PgxRunner struct {
	pool   TxBeginner
	repos  RepoFactory
	policy Policy
	logger *zap.Logger
}

func NewPgxRunner(pool TxBeginner, repos RepoFactory, policy Policy, logger *zap.Logger) *PgxRunner {
	return &PgxRunner{
		pool:   pool,
		repos:  repos,
		policy: policy,
		logger: logger,
	}
}

// InTx 开启事务执行 fn；fn 返回错误或 panic 时回滚，成功时提交一次
func (r *PgxRunner) InTx(ctx context.Context, op string, fn Func) error {
	return Retry(ctx, op, r.policy, r.logger, func(ctx context.Context) error {
		return r.attempt(ctx, op, fn)
	})
}

func (r *PgxRunner) attempt(ctx context.Context, op string, fn Func) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.rollback(ctx, op, tx)
			panic(p)
		}
	}()

	if err := fn(ctx, r.repos(tx)); err != nil {
		r.rollback(ctx, op, tx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit tx: %w", op, err)
	}

	r.logger.Debug("Unit of work committed", zap.String("op", op))
	return nil
}

func (r *PgxRunner) rollback(ctx context.Context, op string, tx pgx.Tx) {
	// 调用方的 ctx 可能已取消，回滚仍需执行
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		r.logger.Error("Failed to rollback transaction",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}
