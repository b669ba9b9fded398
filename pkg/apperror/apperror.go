package apperror

import (
	"errors"
	"fmt"
)

// 哨兵错误：业务层统一的错误分类，handler 用 errors.Is 映射到HTTP状态码
var (
	ErrNotFound   = errors.New("not found")   // 实体不存在
	ErrConflict   = errors.New("conflict")    // 名称/邮箱/用户名等重复
	ErrValidation = errors.New("validation")  // 入参校验失败
	ErrForbidden  = errors.New("forbidden")   // 无权操作
)

// AppError 业务错误
// Err 为哨兵错误，Message 为可直接返回给前端的描述
type AppError struct {
	Err     error  // 哨兵错误
	Message string // 错误描述
	Field   string // 出错字段（可选）
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound 实体不存在
func NotFound(resource string, id interface{}) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s不存在: %v", resource, id),
	}
}

// Conflict 唯一性冲突
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Validation 校验失败
func Validation(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Forbidden 无权操作
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
