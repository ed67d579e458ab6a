package core

import "errors"

// ErrorCode represents a client-level error identifier.
type ErrorCode string

// Error code constants define standardized error identifiers.
const (
	ErrCodeRateLimit   ErrorCode = "RATE_LIMIT"
	ErrCodeAuth        ErrorCode = "AUTH_ERROR"
	ErrCodeBadRequest  ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeServerError ErrorCode = "SERVER_ERROR"

	// Configuration errors
	ErrCodeInvalidConfig  ErrorCode = "INVALID_CONFIG"
	ErrCodeNoCredentials  ErrorCode = "NO_CREDENTIALS"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// Client state errors
	ErrCodeClientClosed ErrorCode = "CLIENT_CLOSED"
)

// CodeForType returns the default code attached to HTTP errors of the given type.
func CodeForType(t ErrorType) ErrorCode {
	switch t {
	case ErrorTypeRateLimit:
		return ErrCodeRateLimit
	case ErrorTypeAuthentication:
		return ErrCodeAuth
	case ErrorTypeBadRequest:
		return ErrCodeBadRequest
	case ErrorTypeNotFound:
		return ErrCodeNotFound
	case ErrorTypeServerError:
		return ErrCodeServerError
	default:
		return ""
	}
}

// IsErrorCode checks if the error matches the specified error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
