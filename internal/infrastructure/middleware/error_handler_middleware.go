package middleware

import (
	stderrors "errors"
	"net/http"

	"peerchat/internal/core/domain"
	"peerchat/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware turns errors attached to the context into structured
// HTTP responses. Domain sentinel errors get their canonical status codes;
// everything else falls through to 500.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if appErr := errors.GetAppError(err); appErr != nil {
			logger.Errorw("application error",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"context", appErr.Context,
			)
			c.JSON(appErr.HTTPStatus, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
				"details": appErr.Context,
			})
			return
		}

		if status, code := domainErrorStatus(err); status != 0 {
			logger.Warnw("rejected request",
				"error", err.Error(),
				"status", status,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			c.JSON(status, gin.H{
				"error":   string(code),
				"message": err.Error(),
			})
			return
		}

		logger.Errorw("unhandled error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(errors.ErrCodeInternal),
			"message": "Internal server error",
		})
	}
}

func domainErrorStatus(err error) (int, errors.ErrorCode) {
	switch {
	case stderrors.Is(err, domain.ErrProfileNotFound),
		stderrors.Is(err, domain.ErrPeerNotFound),
		stderrors.Is(err, domain.ErrHistoryNotFound):
		return http.StatusNotFound, errors.ErrCodeNotFound
	case stderrors.Is(err, domain.ErrNoProfile):
		return http.StatusConflict, errors.ErrCodeInvalidState
	case stderrors.Is(err, domain.ErrSessionActive):
		return http.StatusConflict, errors.ErrCodeConflict
	case stderrors.Is(err, domain.ErrNoSession),
		stderrors.Is(err, domain.ErrInvalidSessionState),
		stderrors.Is(err, domain.ErrNotConnected):
		return http.StatusConflict, errors.ErrCodeInvalidState
	case stderrors.Is(err, domain.ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput
	case stderrors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, errors.ErrCodeInvalidInput
	}
	return 0, ""
}

// RecoveryMiddleware recovers from panics and returns a structured 500.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
