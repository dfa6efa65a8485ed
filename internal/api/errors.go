package api

import (
	"errors"
	"fmt"
)

// genericErrorMessage 服务端没有给出可读错误信息时使用
const genericErrorMessage = "请求失败，请稍后重试"

// APIError 服务端返回非 2xx 状态码
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API 错误 (HTTP %d): %s", e.Status, e.Message)
}

// NetworkError 传输层失败（连接被拒绝、DNS 失败等）
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("网络错误: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError 请求超时
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("请求超时: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ValidationError 请求发出前的本地校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UserMessage 将错误转换为适合展示给用户的简短文本
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	var netErr *NetworkError
	var timeoutErr *TimeoutError
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &timeoutErr):
		return "请求超时，请检查网络后重试"
	case errors.As(err, &netErr):
		return "无法连接服务器，请检查网络"
	}
	return err.Error()
}

// IsUnauthorized 判断是否为 401/403
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 401 || apiErr.Status == 403
	}
	return false
}
