// Package overdue 定期把已过结束日期且未终结的任务标记为逾期，并提醒负责人。
package overdue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/service/notify"
	"projectflow/internal/store"
	"projectflow/internal/uow"
	"projectflow/internal/workflow"
	"projectflow/pkg/metrics"
)

const op = "task.mark_overdue"

type Job struct {
	runner    uow.Runner
	sender    *notify.Sender
	logger    *zap.Logger
	batchSize int
}

func NewJob(runner uow.Runner, sender *notify.Sender, logger *zap.Logger) *Job {
	return &Job{
		runner:    runner,
		sender:    sender,
		logger:    logger,
		batchSize: 200,
	}
}

// WithBatchSize 设置单次标记的最大任务数
func (j *Job) WithBatchSize(n int) *Job {
	if n > 0 {
		j.batchSize = n
	}
	return j
}

// Run 标记结束日期早于 now 所在自然日（UTC）的任务，返回标记数量
func (j *Job) Run(ctx context.Context, now time.Time) (int, error) {
	u := now.UTC()
	asOf := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	var (
		marked  int
		planned []model.NotificationPayload
	)
	err := j.runner.InTx(ctx, op, func(ctx context.Context, r store.Repos) error {
		marked, planned = 0, nil

		tasks, err := r.Tasks.ListOverdueCandidates(ctx, asOf, j.batchSize)
		if err != nil {
			return fmt.Errorf("list overdue candidates: %w", err)
		}
		for _, t := range tasks {
			t.IsOverdue = true
			if err := r.Tasks.Update(ctx, t); err != nil {
				return fmt.Errorf("mark task %d overdue: %w", t.ID, err)
			}
			marked++
			planned = append(planned, workflow.PlanOverdue(t)...)
		}
		return nil
	})
	if err != nil {
		j.logger.Error("Overdue rollover failed", zap.Error(err))
		return 0, err
	}

	if marked > 0 {
		j.logger.Info("Tasks marked overdue", zap.Int("count", marked), zap.Time("as_of", asOf))
		metrics.AddOverdueTasks(marked)
		j.sender.Send(ctx, planned)
	}
	return marked, nil
}

// Start 按 interval 周期执行，阻塞直到 ctx 结束
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("Starting overdue rollover", zap.Duration("interval", interval), zap.Int("batch_size", j.batchSize))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Overdue rollover stopped")
			return
		case now := <-ticker.C:
			j.tick(ctx, now)
		}
	}
}

// tick 一批处理满说明还有积压，继续下一批直到清空或出错
func (j *Job) tick(ctx context.Context, now time.Time) int {
	total := 0
	for ctx.Err() == nil {
		n, err := j.Run(ctx, now)
		total += n
		if err != nil || n < j.batchSize {
			break
		}
	}
	return total
}
