package errs

import (
	"fmt"
	"net/http"
	"strings"

	"groupnav/internal/pkg/logx"
)

// CustomError is the error type returned across handler boundaries.
// It pairs a business code with a user-facing message and an HTTP status.
type CustomError struct {
	Code    int
	Message string
	Status  int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a *CustomError from a registered code. details are printf arguments
// for messages that contain verbs; for ErrUnknown a leading error detail is logged instead.
// Unregistered codes collapse to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("error code %d is not registered", code),
			"Unknown error code requested",
			"requested_code", code,
		)
		templateErr = errorMap[ErrUnknown]
	}

	customErr := templateErr
	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	switch {
	case len(details) == 0:
	case customErr.Code == ErrUnknown:
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
		}
	case strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	default:
		logx.Warn("Error details supplied for a message without placeholders; ignored.", "code", code)
	}

	return &customErr
}
