package response

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/flox/server/internal/utils/errors"
)

// ErrorMapping maps a domain error to the AppError rendered for it.
type ErrorMapping struct {
	Err    error
	AppErr func() *apperrors.AppError
}

// Map is shorthand for building an ErrorMapping.
func Map(err error, appErr func() *apperrors.AppError) ErrorMapping {
	return ErrorMapping{Err: err, AppErr: appErr}
}

// Error writes an AppError as the JSON error body and aborts the chain.
func Error(c *gin.Context, err *apperrors.AppError) {
	if err.Err != nil {
		_ = c.Error(err.Err)
	}
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}

// HandleError handles an error using the provided mappings.
// Returns true if the error was handled, false otherwise.
func HandleError(c *gin.Context, err error, mappings []ErrorMapping) bool {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		Error(c, appErr)
		return true
	}
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			Error(c, m.AppErr().WithError(err))
			return true
		}
	}
	return false
}

// HandleErrorWithDefault handles an error with a generic retryable fallback.
// The raw error is recorded on the context for the access log, never sent.
func HandleErrorWithDefault(c *gin.Context, err error, mappings []ErrorMapping) {
	if !HandleError(c, err, mappings) {
		Error(c, apperrors.Internal("", err))
	}
}
