package apperrors

type Type string

const (
	TypeValidation          Type = "validation"
	TypeNotFound            Type = "not_found"
	TypeConflict            Type = "conflict"
	TypeUnavailable         Type = "unavailable"
	TypeTransactionFailed   Type = "transaction_failed"
	TypeTransactionTimedOut Type = "transaction_timed_out"
	TypeInternal            Type = "internal"
)

type AppError struct {
	Type    Type           `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

// Retryable reports whether re-running the affected cycle may succeed.
func (e *AppError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Type {
	case TypeUnavailable, TypeTransactionFailed, TypeTransactionTimedOut, TypeInternal:
		return true
	default:
		return false
	}
}

func NewInternal(code, message string, details map[string]any) *AppError {
	return newAppError(TypeInternal, code, message, details)
}

func NewValidation(code, message string, details map[string]any) *AppError {
	return newAppError(TypeValidation, code, message, details)
}

func NewNotFound(code, message string, details map[string]any) *AppError {
	return newAppError(TypeNotFound, code, message, details)
}

func NewConflict(code, message string, details map[string]any) *AppError {
	return newAppError(TypeConflict, code, message, details)
}

func NewUnavailable(code, message string, details map[string]any) *AppError {
	return newAppError(TypeUnavailable, code, message, details)
}

func NewTransactionFailed(code, message string, details map[string]any) *AppError {
	return newAppError(TypeTransactionFailed, code, message, details)
}

func NewTransactionTimedOut(code, message string, details map[string]any) *AppError {
	return newAppError(TypeTransactionTimedOut, code, message, details)
}

func newAppError(errorType Type, code, message string, details map[string]any) *AppError {
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: details,
	}
}
