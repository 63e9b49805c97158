package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseOrigins(t *testing.T) {
	o := ParseOrigins(" https://app.blessbox.org/ ,https://admin.blessbox.org,")
	assert.False(t, o.Any())
	assert.True(t, o.Allows("https://app.blessbox.org"))
	assert.True(t, o.Allows("https://admin.blessbox.org"))
	assert.False(t, o.Allows("https://evil.example"))
	assert.False(t, o.Allows(""))

	assert.True(t, ParseOrigins("").Any())
	assert.True(t, ParseOrigins("*").Allows("https://anything.example"))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("https://app.blessbox.org"))
	r.POST("/check-ins", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/check-ins", nil)
	req.Header.Set("Origin", "https://app.blessbox.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.blessbox.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodPost, "/check-ins", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
