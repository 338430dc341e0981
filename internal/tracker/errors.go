package tracker

import (
	"errors"
	"fmt"

	"github.com/resolveit/escalation-monitor/internal/access"
	"github.com/resolveit/escalation-monitor/internal/apiclient"
)

var (
	ErrStatusUnchanged = errors.New("status unchanged")
	ErrReasonRequired  = errors.New("reason required")
	ErrSeniorRequired  = errors.New("senior employee required")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrForbidden       = errors.New("forbidden")
	// ErrRefetchFailed 操作已被后端确认，只是重新拉取投诉失败
	ErrRefetchFailed = errors.New("complaint refetch failed")
)

var errComplaintRequired = &ValidationError{Field: "complaint", Message: "complaint is required"}

const connectionMessage = "Unable to reach the server. Please check your connection."

// ValidationError 本地校验失败，请求不会发出
type ValidationError struct {
	Field   string
	Message string
	err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

type forbiddenError struct {
	denied *access.DeniedError
}

func (e *forbiddenError) Error() string {
	return e.denied.Reason
}

func (e *forbiddenError) Unwrap() []error {
	return []error{ErrForbidden, e.denied}
}

func forbidden(result access.GuardResult) error {
	var denied *access.DeniedError
	if err := result.Error(); errors.As(err, &denied) {
		return &forbiddenError{denied: denied}
	}
	return nil
}

// UserMessage 把错误转换成界面上展示的文字
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var refetch *refetchError
	if errors.As(err, &refetch) {
		return "Action completed, but the complaint could not be reloaded: " + UserMessage(refetch.err)
	}

	if apiErr, ok := apiclient.AsAPIError(err); ok {
		if apiErr.Status == 0 {
			return connectionMessage
		}
		return apiErr.Message
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	var denied *access.DeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}

	var unchanged *statusUnchangedError
	if errors.As(err, &unchanged) {
		return fmt.Sprintf("Complaint is already %s", unchanged.status)
	}

	return err.Error()
}

type statusUnchangedError struct {
	status string
}

func (e *statusUnchangedError) Error() string {
	return fmt.Sprintf("complaint is already %s", e.status)
}

func (e *statusUnchangedError) Unwrap() error {
	return ErrStatusUnchanged
}

type refetchError struct {
	err error
}

func (e *refetchError) Error() string {
	return fmt.Sprintf("action succeeded but complaint refetch failed: %v", e.err)
}

func (e *refetchError) Unwrap() []error {
	return []error{ErrRefetchFailed, e.err}
}
