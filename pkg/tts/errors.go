package tts

import "fmt"

// ErrorCode classifies synthesis failures.
type ErrorCode int

const (
	// ErrCodeUnknown is an unclassified failure.
	ErrCodeUnknown ErrorCode = iota

	// ErrCodeInvalidCredentials means the API key was rejected.
	ErrCodeInvalidCredentials

	// ErrCodeRateLimited means the provider throttled the request.
	ErrCodeRateLimited

	// ErrCodeInvalidVoice means the requested voice does not exist.
	ErrCodeInvalidVoice

	// ErrCodeProviderError covers other provider-side failures.
	ErrCodeProviderError
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeInvalidCredentials:
		return "invalid_credentials"
	case ErrCodeRateLimited:
		return "rate_limited"
	case ErrCodeInvalidVoice:
		return "invalid_voice"
	case ErrCodeProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}

// Error is a typed synthesis error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tts %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("tts %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed synthesis error.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
