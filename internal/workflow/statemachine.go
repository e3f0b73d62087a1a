package workflow

import (
	"fmt"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
)

// SideEffect 状态迁移触发的通知指令
type SideEffect int

const (
	EffectNone SideEffect = iota
	EffectNotifyReviewer
	EffectNotifyAssignee
)

// transitions 允许的迁移表，终态没有出边
var transitions = map[model.TaskStatus]map[model.TaskStatus]SideEffect{
	model.TaskStatusTodo: {
		model.TaskStatusInProgress: EffectNone,
		model.TaskStatusCancelled:  EffectNone,
	},
	model.TaskStatusInProgress: {
		model.TaskStatusReadyToReview: EffectNotifyReviewer,
		model.TaskStatusCancelled:     EffectNone,
	},
	model.TaskStatusReadyToReview: {
		model.TaskStatusDone:     EffectNone,
		model.TaskStatusReOpened: EffectNotifyAssignee,
	},
	model.TaskStatusReOpened: {
		model.TaskStatusInProgress: EffectNone,
	},
	model.TaskStatusDone:      {},
	model.TaskStatusCancelled: {},
}

// initialStatuses 创建任务时允许的状态
var initialStatuses = map[model.TaskStatus]bool{
	model.TaskStatusTodo:       true,
	model.TaskStatusInProgress: true,
}

// Transition 校验 from→to 是否合法并返回对应的副作用
func Transition(from, to model.TaskStatus) (SideEffect, error) {
	effect, ok := transitions[from][to]
	if !ok {
		return EffectNone, apperr.Validation("task.transition",
			fmt.Sprintf("Invalid status transition from %s to %s", from, to))
	}
	return effect, nil
}

// IsTerminal Done 和 Cancelled 为终态
func IsTerminal(s model.TaskStatus) bool {
	out, known := transitions[s]
	return known && len(out) == 0
}

// InitialStatus 返回创建时的状态，未指定时为 Todo
func InitialStatus(requested *model.TaskStatus) (model.TaskStatus, error) {
	if requested == nil || *requested == "" {
		return model.TaskStatusTodo, nil
	}
	if !initialStatuses[*requested] {
		return "", apperr.Validation("task.create",
			fmt.Sprintf("Invalid initial status %s", *requested))
	}
	return *requested, nil
}

// Targets 返回 from 可以迁移到的状态
func Targets(from model.TaskStatus) []model.TaskStatus {
	var out []model.TaskStatus
	for _, to := range []model.TaskStatus{
		model.TaskStatusTodo,
		model.TaskStatusInProgress,
		model.TaskStatusReadyToReview,
		model.TaskStatusDone,
		model.TaskStatusReOpened,
		model.TaskStatusCancelled,
	} {
		if _, ok := transitions[from][to]; ok {
			out = append(out, to)
		}
	}
	return out
}
