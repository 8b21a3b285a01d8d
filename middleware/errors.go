package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
)

// ErrorHandler renders the last error attached to the context as the
// standard error envelope.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		ginErr := c.Errors.Last()
		appErr := toAppError(ginErr)
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Int("status", appErr.Status),
				zap.Error(ginErr.Err))
		}

		body := gin.H{"code": appErr.Code, "message": appErr.Message}
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
		c.JSON(appErr.Status, gin.H{"success": false, "error": body})
	}
}

func toAppError(ginErr *gin.Error) *apperrors.AppError {
	err := ginErr.Err
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Status == http.StatusServiceUnavailable && appErr.Err != nil {
			// upstream detail stays in the logs
			return &apperrors.AppError{Status: appErr.Status, Code: appErr.Code, Message: appErr.Message}
		}
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := map[string][]string{}
		for _, fe := range verrs {
			name := lowerFirst(fe.Field())
			fields[name] = append(fields[name], validationMessage(fe))
		}
		return apperrors.Validation(fields)
	}
	if ginErr.IsType(gin.ErrorTypeBind) {
		return apperrors.Validation(map[string][]string{"body": {err.Error()}})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("resource")
	}
	return &apperrors.AppError{Status: http.StatusInternalServerError, Code: apperrors.CodeInternal, Message: "internal server error", Err: err}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid e-mail"
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
