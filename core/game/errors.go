package game

import (
	"errors"
	"fmt"
)

// 错误类型，调用方通过 errors.Is 区分
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrValidationFailed = errors.New("validation failed")
	ErrUpstreamFailure  = errors.New("upstream failure")
)

// Error carries one of the kinds above plus a caller-facing message.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// NotFound 房间或玩家不存在
func NotFound(msg string) error { return newError(ErrNotFound, msg) }

// InvalidState 当前状态不允许该操作
func InvalidState(msg string) error { return newError(ErrInvalidState, msg) }

// Forbidden 操作者没有权限
func Forbidden(msg string) error { return newError(ErrForbidden, msg) }

// Conflict 名字已被占用、已提交等冲突
func Conflict(msg string) error { return newError(ErrConflict, msg) }

// ValidationFailed 输入不合法
func ValidationFailed(msg string) error { return newError(ErrValidationFailed, msg) }

// Upstream wraps a store or catalog failure.
func Upstream(msg string, cause error) error {
	return &Error{Kind: ErrUpstreamFailure, Msg: msg, Cause: cause}
}

// Message returns the caller-facing message of err without the wrapped cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// KindName returns a short label for the kind of err ("ok" for nil, "internal" when unknown).
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrUpstreamFailure):
		return "upstream_failure"
	default:
		return "internal"
	}
}
