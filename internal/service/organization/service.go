// Package organization 处理成员移出组织后的级联清理。
package organization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
	"projectflow/internal/service/notify"
	"projectflow/internal/store"
	"projectflow/internal/uow"
	"projectflow/internal/workflow"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
)

const op = "organization.remove_member"

// errDetach 标记组织解绑步骤的持久化失败
var errDetach = errors.New("detach member from organization")

// Summary 级联结果
type Summary struct {
	MembershipsClosed int
	ProjectsAffected  int
	TasksUnassigned   int
}

func (s Summary) String() string {
	return fmt.Sprintf("Member removed from organization. %d project membership(s) closed across %d project(s); %d task(s) unassigned.",
		s.MembershipsClosed, s.ProjectsAffected, s.TasksUnassigned)
}

type Service struct {
	runner uow.Runner
	reads  store.Repos
	sender *notify.Sender
	logger *zap.Logger
	now    func() time.Time
}

func NewService(runner uow.Runner, reads store.Repos, sender *notify.Sender, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		reads:  reads,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// RemoveMemberFromOrganization 解绑成员、关闭其在 owner 项目中的成员关系、
// 取消其未终结任务的分配。全部步骤在一个工作单元内完成，通知在提交后发送
func (s *Service) RemoveMemberFromOrganization(ctx context.Context, ownerID, memberID int64) (apperr.Result[string], error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("owner_id", ownerID), zap.Int64("member_id", memberID))

	// 先在事务外校验，拒绝时不开启工作单元
	if _, err := loadMember(ctx, s.reads.Users, ownerID, memberID); err != nil {
		return s.settle(log, err)
	}

	var (
		summary Summary
		planned []model.NotificationPayload
	)
	err := s.runner.InTx(ctx, op, func(ctx context.Context, r store.Repos) error {
		summary, planned = Summary{}, nil

		member, err := loadMember(ctx, r.Users, ownerID, memberID)
		if err != nil {
			return err
		}

		member.OrganizationName = nil
		member.ManagingOwnerID = nil
		if err := r.Users.UpdateOrganization(ctx, member); err != nil {
			return fmt.Errorf("%w: %w", errDetach, err)
		}

		projectIDs, err := r.Projects.ListIDsByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("list projects of owner %d: %w", ownerID, err)
		}
		if len(projectIDs) == 0 {
			return nil
		}

		memberships, err := r.Members.ListActiveByMemberAndProjects(ctx, memberID, projectIDs)
		if err != nil {
			return fmt.Errorf("list active memberships: %w", err)
		}
		leftAt := s.now().UTC()
		touched := make(map[int64]bool, len(memberships))
		for _, m := range memberships {
			m.LeftAt = &leftAt
			touched[m.ProjectID] = true
		}
		if len(memberships) > 0 {
			if err := r.Members.UpdateBatch(ctx, memberships); err != nil {
				return fmt.Errorf("close memberships: %w", err)
			}
		}
		summary.MembershipsClosed = len(memberships)

		for _, projectID := range projectIDs {
			tasks, err := r.Tasks.ListByProject(ctx, projectID)
			if err != nil {
				return fmt.Errorf("list tasks of project %d: %w", projectID, err)
			}
			for _, t := range tasks {
				if !t.IsAssignedTo(memberID) || workflow.IsTerminal(t.Status) {
					continue
				}
				// 列表是未加锁的快照，是否终结以加锁后的行为准
				unassigned, err := r.Tasks.UnassignOpen(ctx, t.ID, memberID)
				if err != nil {
					return fmt.Errorf("unassign task %d: %w", t.ID, err)
				}
				if unassigned == nil {
					log.Info("Task finished or reassigned concurrently, skipped", zap.Int64("task_id", t.ID))
					continue
				}
				if err := r.History.RecordAssignmentChange(ctx, t.ID, model.Int64Ptr(memberID), nil, ownerID); err != nil {
					return fmt.Errorf("record assignment history for task %d: %w", t.ID, err)
				}
				touched[projectID] = true
				summary.TasksUnassigned++
				planned = append(planned, workflow.PlanCascadeUnassignment(unassigned, member)...)
			}
		}
		summary.ProjectsAffected = len(touched)
		return nil
	})
	if err != nil {
		if errors.Is(err, errDetach) {
			log.Error("Failed to detach member from organization", zap.Error(err))
			metrics.IncrementTaskOperation(op, string(apperr.KindValidation))
			return apperr.Fail[string](apperr.Validation(op, "Failed to remove member from organization.")), nil
		}
		return s.settle(log, err)
	}

	log.Info("Member removed from organization",
		zap.Int("memberships_closed", summary.MembershipsClosed),
		zap.Int("projects_affected", summary.ProjectsAffected),
		zap.Int("tasks_unassigned", summary.TasksUnassigned),
	)
	metrics.AddCascadeUnassigned(summary.TasksUnassigned)
	metrics.IncrementTaskOperation(op, "ok")
	s.sender.Send(ctx, planned)

	text := summary.String()
	return apperr.OkMessage(text, text), nil
}

// loadMember 读取成员并确认其属于 ownerID 的组织
func loadMember(ctx context.Context, users store.UserStore, ownerID, memberID int64) (*model.User, error) {
	member, err := users.Get(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load member %d: %w", memberID, err)
	}
	if member == nil {
		return nil, apperr.NotFound(op, "Member not found")
	}
	if !member.BelongsToOrganizationOf(ownerID) {
		return nil, apperr.Validation(op, "This member does not belong to your organization.")
	}
	return member, nil
}

func (s *Service) settle(log *zap.Logger, err error) (apperr.Result[string], error) {
	if apperr.IsDomain(err) {
		log.Info("Member removal rejected", zap.Error(err))
	} else {
		log.Error("Member removal cascade failed", zap.Error(err))
	}
	metrics.IncrementTaskOperation(op, string(apperr.KindOf(err)))
	return apperr.Settle[string](err)
}
