package apperr

// Result 操作结果：业务失败通过 Success=false 返回，不走 error
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
	Data    T      `json:"data,omitempty"`
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// OkMessage 成功并附带说明文字
func OkMessage[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

func Fail[T any](e *Error) Result[T] {
	return Result[T]{Success: false, Message: e.Message, Kind: e.Kind}
}

// Settle 把业务错误转为失败的 Result，其他错误原样返回
func Settle[T any](err error) (Result[T], error) {
	if e, ok := As(err); ok && e.Kind != KindInfrastructure {
		return Fail[T](e), nil
	}
	return Result[T]{}, err
}
