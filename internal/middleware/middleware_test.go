package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petamigos/contentguard/internal/security"
)

const testModeratorSecret = "test-secret"

func newAuthRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/review", ModeratorAuth(testModeratorSecret), RequireRoles(roles...), func(c *gin.Context) {
		claims, _ := CurrentModerator(c)
		c.JSON(http.StatusOK, gin.H{"moderator": claims.ModeratorID()})
	})
	return r
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := security.GenerateModeratorToken(testModeratorSecret, "mod-7", role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestModeratorAuth(t *testing.T) {
	r := newAuthRouter(security.RoleModerator, security.RoleAdmin)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", bearer(t, "member"), http.StatusForbidden},
		{"moderator", bearer(t, security.RoleModerator), http.StatusOK},
		{"admin", bearer(t, security.RoleAdmin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/review", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"moderator":"mod-7"}`, w.Body.String())
			}
		})
	}
}

func TestRecoveryAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(zerolog.Nop()), Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
	assert.JSONEq(t, `{"error":"internal_server_error","requestId":"req-123"}`, w.Body.String())
}

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	for name, incoming := range map[string]string{
		"empty":     "",
		"too long":  strings.Repeat("a", maxRequestIDLen+1),
		"space":     "req 1",
		"non ascii": "req-é",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/id", nil)
			req.Header.Set(requestIDHeader, incoming)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			minted := w.Header().Get(requestIDHeader)
			assert.NotEqual(t, incoming, minted)
			assert.Len(t, minted, 36)
			assert.Equal(t, minted, w.Body.String())
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	preflight := func(r *gin.Engine, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	listed := gin.New()
	listed.Use(CORS([]string{"https://app.example.com"}))
	listed.POST("/x", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := preflight(listed, "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, corsMaxAge, w.Header().Get("Access-Control-Max-Age"))

	w = preflight(listed, "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := gin.New()
	open.Use(CORS(nil))
	open.POST("/x", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w = preflight(open, "https://anywhere.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://anywhere.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	w = httptest.NewRecorder()
	listed.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Header().Get("Vary"))
}
