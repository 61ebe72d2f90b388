package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorPrefix 所有以文本形式返回的错误前缀
const ErrorPrefix = "❌ "

var (
	ErrTimeout    = errors.New("request timeout")
	ErrConnection = errors.New("connection error")
	ErrCancelled  = errors.New("request cancelled")
)

// HTTPStatusError 非 200 响应
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError 响应体不是合法 JSON
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("JSON parsing error: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// UnexpectedStructureError 响应是 JSON 但没有可用的 choices
type UnexpectedStructureError struct {
	Body string
}

func (e *UnexpectedStructureError) Error() string {
	return fmt.Sprintf("Unexpected response structure: %s", e.Body)
}

// classifyTransportError 把 http.Client 返回的错误归类为超时/取消/连接错误
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// Describe 把生成错误转换为面向用户的文本
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *HTTPStatusError
	var malformedErr *MalformedResponseError
	var structureErr *UnexpectedStructureError

	switch {
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case 401:
			return ErrorPrefix + "Authentication Error: Invalid API key"
		case 403:
			return ErrorPrefix + "Access Denied: Check your API permissions"
		case 429:
			return ErrorPrefix + "Rate Limited: Too many requests"
		default:
			return ErrorPrefix + statusErr.Error()
		}
	case errors.Is(err, ErrTimeout):
		return ErrorPrefix + "Request timeout - API took too long to respond"
	case errors.Is(err, ErrCancelled):
		return ErrorPrefix + "Request cancelled"
	case errors.Is(err, ErrConnection):
		return ErrorPrefix + "Connection error - Check your internet connection"
	case errors.As(err, &malformedErr):
		return ErrorPrefix + malformedErr.Error()
	case errors.As(err, &structureErr):
		return ErrorPrefix + structureErr.Error()
	}

	return describeByMessage(err)
}

// describeByMessage SDK 类后端不暴露状态码，只能按错误信息关键词判断
func describeByMessage(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key"):
		return ErrorPrefix + "Authentication Error: Invalid API key"
	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		return ErrorPrefix + "Access Denied: Check your API permissions"
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ErrorPrefix + "Rate Limited: Too many requests"
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return ErrorPrefix + "Request timeout - API took too long to respond"
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return ErrorPrefix + "Connection error - Check your internet connection"
	}
	return ErrorPrefix + "Unexpected error: " + err.Error()
}
