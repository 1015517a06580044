// Package clierr 定义会话自动机的错误分类。
// 所有错误均通过 fmt.Errorf("...: %w", ErrX) 包装，调用方使用 errors.Is 判断类别。
package clierr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration 构造参数缺失/为空、未知设备类型或未知协议，发生在任何网络 I/O 之前
	ErrConfiguration = errors.New("configuration error")
	// ErrConnection 传输层连接失败
	ErrConnection = errors.New("connection error")
	// ErrAuthentication 登录或凭据被拒绝
	ErrAuthentication = errors.New("authentication error")
	// ErrReadTimeout 在超时窗口内未观察到期望的终止符
	ErrReadTimeout = errors.New("read timeout")
	// ErrSecretRequired 设备类型要求二级认证但未配置 secret
	ErrSecretRequired = errors.New("secret required")
	// ErrClosed 传输已断开（包括为取消而主动关闭）
	ErrClosed = errors.New("transport closed")
	// ErrSessionUnusable 批处理中止后退出序列失败，设备模式未知
	ErrSessionUnusable = errors.New("session unusable")
)

// Configurationf 构造配置类错误
func Configurationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Wrap 以指定类别包装底层错误；cause 为 nil 时仅返回带上下文的类别错误
func Wrap(kind error, cause error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, cause)
}

// Kind 返回错误的稳定类别代码，用于 API 响应与运行记录
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "CONFIGURATION"
	case errors.Is(err, ErrAuthentication):
		return "AUTHENTICATION"
	case errors.Is(err, ErrSecretRequired):
		return "SECRET_REQUIRED"
	case errors.Is(err, ErrReadTimeout):
		return "READ_TIMEOUT"
	case errors.Is(err, ErrSessionUnusable):
		return "SESSION_UNUSABLE"
	case errors.Is(err, ErrClosed):
		return "CLOSED"
	case errors.Is(err, ErrConnection):
		return "CONNECTION"
	default:
		return "INTERNAL"
	}
}
