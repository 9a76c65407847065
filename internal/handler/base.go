package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medbot-api/pkg/errors"
	"github.com/jwalitptl/medbot-api/pkg/httputil"
)

const headerSessionID = "X-Session-ID"

// BindJSON decodes the request body into obj. On failure it writes a 400
// with message and reports false.
func BindJSON(c *gin.Context, obj interface{}, message string) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(message, err))
		return false
	}
	return true
}

// SessionID names the chat session of a request: the explicit id, then the
// X-Session-ID header, then the client IP.
func SessionID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if h := c.GetHeader(headerSessionID); h != "" {
		return h
	}
	return c.ClientIP()
}
