package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBindJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var body struct {
		Message string `json:"message" binding:"required"`
	}
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		if !BindJSON(c, &body, "Message is required") {
			return
		}
		c.String(http.StatusOK, body.Message)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hi"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Message is required"}`, w.Body.String())
}

func TestSessionID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(header string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
		c.Request.RemoteAddr = "192.0.2.7:5555"
		if header != "" {
			c.Request.Header.Set("X-Session-ID", header)
		}
		return c
	}

	assert.Equal(t, "explicit", SessionID(newCtx("hdr"), "explicit"))
	assert.Equal(t, "hdr", SessionID(newCtx("hdr"), ""))
	assert.Equal(t, "192.0.2.7", SessionID(newCtx(""), ""))
}
