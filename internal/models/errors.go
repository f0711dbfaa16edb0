package models

import (
	"errors"
	"fmt"
)

// ErrCollaboratorUnavailable AI 协作方不可达或未配置
// Never fatal: the caller degrades to "no AI result".
var ErrCollaboratorUnavailable = errors.New("ai collaborator unavailable")

// ErrSignalNotFound 信号不存在
var ErrSignalNotFound = errors.New("signal not found")

// ErrDeviceNotFound 设备不存在
var ErrDeviceNotFound = errors.New("device not found")

// ValidationError 读数校验失败（跳过该读数，不中断 sweep）
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s", e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError 判断是否为校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
