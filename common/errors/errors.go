package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrBadRequest     = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized   = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden      = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound       = New(http.StatusNotFound, "Not found", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)
)

var (
	ErrValidation   = New(http.StatusBadRequest, "Validation error", nil)
	ErrInvalidInput = New(http.StatusBadRequest, "Invalid input", nil)
)

// Catalog errors
var (
	ErrMissingFile     = New(http.StatusBadRequest, "No file uploaded", nil)
	ErrMissingStore    = New(http.StatusBadRequest, "store_id is required", nil)
	ErrUnsupportedFile = New(http.StatusBadRequest, "Invalid file type. Only Excel files (.xlsx, .xls) are allowed", nil)
	ErrFileTooLarge    = New(http.StatusRequestEntityTooLarge, "File too large", nil)
)

// ErrorMiddleware renders the last error attached with c.Error. Unknown errors
// become a generic 500 and their detail is only logged.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var appErr *Error
		if !errors.As(err, &appErr) {
			zap.L().Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
			appErr = ErrInternalServer
		}
		c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
	}
}
