package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），可穿透 fmt.Errorf("%w") 包装
//
// 错误分类：
//   - INVALID_INPUT：缺失或非法的 userId / limit（ValidationError）
//   - NOT_FOUND：未知用户或 key 不存在
//   - UNAVAILABLE：事件/内容/用户等协作方不可达（UpstreamError），对当前工作单元是致命的
//   - DISPATCH_FAILED：推送发送失败（DispatchError），仅记录日志，不影响生成结果
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "service", "notify"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound       = "NOT_FOUND"       // 资源不存在
	ErrorCodeNotSupported   = "NOT_SUPPORTED"   // 操作不支持
	ErrorCodeUnavailable    = "UNAVAILABLE"     // 上游不可用
	ErrorCodeInvalidInput   = "INVALID_INPUT"   // 输入无效
	ErrorCodeDispatchFailed = "DISPATCH_FAILED" // 推送失败
	ErrorCodeInternalError  = "INTERNAL_ERROR"  // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // 存储模块
	ModuleFeature = "feature" // 偏好抽取
	ModuleRecall  = "recall"  // 打分模块
	ModuleService = "service" // 服务模块
	ModuleNotify  = "notify"  // 推送模块
)

// NewValidationError 创建输入校验错误。
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(ModuleService, ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}

// NewNotFoundError 创建资源不存在错误。
func NewNotFoundError(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeNotFound, fmt.Sprintf(format, args...))
}

// NewInternalError 创建内部错误，例如打分器 panic。
func NewInternalError(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeInternalError, fmt.Sprintf(format, args...))
}

// NewUpstreamError 包装协作方不可达错误。
func NewUpstreamError(module, what string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    ErrorCodeUnavailable,
		Message: what + " unavailable",
		Err:     err,
	}
}

// NewDispatchError 包装推送失败错误。
func NewDispatchError(target string, err error) *DomainError {
	return &DomainError{
		Module:  ModuleNotify,
		Code:    ErrorCodeDispatchFailed,
		Message: "dispatch to " + target + " failed",
		Err:     err,
	}
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsValidation 检查错误是否为 INVALID_INPUT
func IsValidation(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsDispatchFailed 检查错误是否为 DISPATCH_FAILED
func IsDispatchFailed(err error) bool {
	return hasCode(err, ErrorCodeDispatchFailed)
}

// IsInternal 检查错误是否为 INTERNAL_ERROR
func IsInternal(err error) bool {
	return hasCode(err, ErrorCodeInternalError)
}
