// Package apperr 定义业务错误分类以及对外返回的 Result。
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindInfrastructure Kind = "infrastructure"
)

// Error 携带分类、操作名和面向用户的消息
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func Conflict(op, message string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

func Infrastructure(op string, cause error) *Error {
	return &Error{Kind: KindInfrastructure, Op: op, Message: "internal error", Cause: cause}
}

// As 提取错误链中的 *Error
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf 返回错误分类，非 *Error 视为基础设施错误
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInfrastructure
}

// IsDomain 是否为可以直接返回给调用方的业务错误（非基础设施）
func IsDomain(err error) bool {
	e, ok := As(err)
	return ok && e.Kind != KindInfrastructure
}
