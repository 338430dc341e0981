package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	NetworkStatusText = "Network Error"
	NetworkMessage    = "Network error. Please check your connection."
)

// APIError 对应前端 request() 抛出的 {status, statusText, data, message}
type APIError struct {
	Status     int
	StatusText string
	Data       map[string]any
	Message    string

	err error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.StatusText, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.StatusText, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// Retryable 只有没有收到响应（网络错误、超时）的请求可以直接重试
func (e *APIError) Retryable() bool {
	return e.Status == 0
}

func networkError(err error) *APIError {
	return &APIError{
		Status:     0,
		StatusText: NetworkStatusText,
		Data:       map[string]any{"error": "Network connection failed"},
		Message:    NetworkMessage,
		err:        err,
	}
}

func defaultMessage(status int) string {
	return fmt.Sprintf("Request failed with status %d", status)
}

func httpError(resp *http.Response, body []byte, tryJSON bool) *APIError {
	data, parsed := decodeErrorBody(body, tryJSON)
	statusText := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	if statusText == "" {
		statusText = http.StatusText(resp.StatusCode)
	}

	apiErr := &APIError{
		Status:     resp.StatusCode,
		StatusText: statusText,
		Data:       data,
		Message:    defaultMessage(resp.StatusCode),
	}
	// 非 JSON 的错误体只放进 Data，不作为提示信息
	if parsed {
		apiErr.Message = messageFrom(data, apiErr.Message)
	}
	return apiErr
}

func decodeErrorBody(body []byte, tryJSON bool) (map[string]any, bool) {
	if tryJSON {
		data := map[string]any{}
		if err := json.Unmarshal(body, &data); err == nil {
			return data, true
		}
	}
	return map[string]any{"message": string(body)}, false
}

// messageFrom 优先取 error 字段，其次 message 字段
func messageFrom(data map[string]any, fallback string) string {
	for _, key := range []string{"error", "message"} {
		if s, ok := data[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fallback
}

func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf 返回错误对应的 HTTP 状态码，非 APIError 返回 -1
func StatusOf(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status
	}
	return -1
}

func IsRetryable(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func IsAuthError(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
