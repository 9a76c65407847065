package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medbot-api/pkg/errors"
)

// ErrorBody is the error payload of every endpoint: {"error": "..."}.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RespondWithSuccess sends data as the JSON body with 200.
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondWithError sends an error response. AppErrors carry their own
// status and message; anything else is reported as a 500 without details.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	if appErr, ok := errors.As(err); ok {
		statusCode = appErr.StatusCode()
		message = appErr.Message
	}

	body := ErrorBody{Error: message}
	if gin.Mode() == gin.DebugMode && statusCode >= http.StatusInternalServerError {
		body.Details = err.Error()
	}

	c.AbortWithStatusJSON(statusCode, body)
}
