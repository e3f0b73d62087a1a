package memstore

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"projectflow/internal/uow"
)

// Runner 内存事务执行器：开始时做快照，失败时恢复快照
type Runner struct {
	db     *DB
	policy uow.Policy
	logger *zap.Logger
	txMu   sync.Mutex

	// FailBegin / FailCommit 非空时对应步骤返回该错误
	FailBegin  error
	FailCommit error

	BeginCalls    atomic.Int64
	CommitCalls   atomic.Int64
	RollbackCalls atomic.Int64
}

var _ uow.Runner = (*Runner)(nil)

func NewRunner(db *DB, policy uow.Policy, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, policy: policy, logger: logger}
}

func (r *Runner) InTx(ctx context.Context, op string, fn uow.Func) error {
	return uow.Retry(ctx, op, r.policy, r.logger, func(ctx context.Context) error {
		return r.attempt(ctx, fn)
	})
}

func (r *Runner) attempt(ctx context.Context, fn uow.Func) error {
	r.BeginCalls.Add(1)
	if r.FailBegin != nil {
		return r.FailBegin
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	snap := r.db.snapshot()
	rollback := func() {
		r.RollbackCalls.Add(1)
		r.db.restore(snap)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, r.db.Repos()); err != nil {
		rollback()
		return err
	}

	r.CommitCalls.Add(1)
	if r.FailCommit != nil {
		r.db.restore(snap)
		return r.FailCommit
	}
	return nil
}
