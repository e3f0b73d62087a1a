package workflow

import (
	"fmt"
	"html"

	"projectflow/internal/model"
)

// 通知标题
const (
	TitleReviewRequest   = "Task review request"
	TitleReopened        = "Task Reopened"
	TitleAssigned        = "New task assigned"
	TitleUnassignedByOrg = "Task Unassigned - Member Removed"
	TitleOverdue         = "Task overdue"
)

// PlanTransition 状态迁移产生的通知
func PlanTransition(task *model.Task, effect SideEffect) []model.NotificationPayload {
	switch effect {
	case EffectNotifyReviewer:
		if task.ReviewerID == nil {
			return nil
		}
		return []model.NotificationPayload{payload(*task.ReviewerID, task,
			TitleReviewRequest, model.EventTaskReviewRequested,
			fmt.Sprintf("Task %q is ready for your review.", task.Title))}
	case EffectNotifyAssignee:
		if task.AssigneeID == nil {
			return nil
		}
		return []model.NotificationPayload{payload(*task.AssigneeID, task,
			TitleReopened, model.EventTaskReopened,
			fmt.Sprintf("Task %q has been reopened and needs more work.", task.Title))}
	default:
		return nil
	}
}

// PlanAssignment 新负责人收到分配通知，自己分配给自己时不通知
func PlanAssignment(task *model.Task, actorID int64) []model.NotificationPayload {
	if task.AssigneeID == nil || *task.AssigneeID == actorID {
		return nil
	}
	return []model.NotificationPayload{payload(*task.AssigneeID, task,
		TitleAssigned, model.EventTaskAssigned,
		fmt.Sprintf("You have been assigned to task %q.", task.Title))}
}

// PlanUpdate 合并一次更新产生的通知。状态变更已经通知到新负责人时（如重新指派并打回），
// 不再重复发送分配通知
func PlanUpdate(task *model.Task, effect SideEffect, assigneeChanged bool, actorID int64) []model.NotificationPayload {
	planned := PlanTransition(task, effect)
	if !assigneeChanged {
		return planned
	}
	for _, p := range PlanAssignment(task, actorID) {
		if !notifies(planned, p.RecipientID) {
			planned = append(planned, p)
		}
	}
	return planned
}

func notifies(planned []model.NotificationPayload, recipientID int64) bool {
	for _, p := range planned {
		if p.RecipientID == recipientID {
			return true
		}
	}
	return false
}

// PlanCascadeUnassignment 成员被移出组织后通知任务审核人
func PlanCascadeUnassignment(task *model.Task, removed *model.User) []model.NotificationPayload {
	if task.ReviewerID == nil {
		return nil
	}
	who := "A member"
	if removed != nil && removed.Name != "" {
		who = removed.Name
	}
	return []model.NotificationPayload{payload(*task.ReviewerID, task,
		TitleUnassignedByOrg, model.EventTaskUnassigned,
		fmt.Sprintf("%s was removed from the organization and is no longer assigned to task %q.", who, task.Title))}
}

// PlanOverdue 逾期提醒负责人
func PlanOverdue(task *model.Task) []model.NotificationPayload {
	if task.AssigneeID == nil {
		return nil
	}
	return []model.NotificationPayload{payload(*task.AssigneeID, task,
		TitleOverdue, model.EventTaskOverdue,
		fmt.Sprintf("Task %q has passed its end date.", task.Title))}
}

func payload(recipient int64, task *model.Task, title, event, body string) model.NotificationPayload {
	return model.NotificationPayload{
		RecipientID: recipient,
		Title:       title,
		Body:        body,
		HTMLBody:    fmt.Sprintf("<h3>%s</h3><p>%s</p>", html.EscapeString(title), html.EscapeString(body)),
		EventType:   event,
		EntityID:    task.ID,
		Email:       true,
	}
}
