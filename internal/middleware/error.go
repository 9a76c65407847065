package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medbot-api/pkg/errors"
)

// ErrorLogger logs the errors handlers attached with c.Error. The response
// itself is written by the handler. Client errors are logged at warn level.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			level := zerolog.ErrorLevel
			if appErr, ok := errors.As(e.Err); ok && appErr.StatusCode() < 500 {
				level = zerolog.WarnLevel
			}

			log.WithLevel(level).
				Err(e.Err).
				Str("request_id", GetRequestID(c)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}
	}
}
