package middleware

import (
	"jyotish-chat/internal/services"
	"jyotish-chat/internal/transport/httpdto"
	chat_errors "jyotish-chat/pkg/errors"
	"jyotish-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error, unless
// the handler already wrote a response.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if l != nil && status >= 500 {
			l.WithContext(c.Request.Context()).Error("request failed", zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		msg := err.Error()
		if status >= 500 {
			msg = "internal server error"
		}
		c.JSON(status, httpdto.NewErrorResponse(msg, chat_errors.Code(err)))
	}
}
