package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(), LoggingMiddleware())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	authed := r.Group("/", RequireAuth(testSecret))
	authed.GET("/me", func(c *gin.Context) {
		subject, _ := GetSubject(c)
		c.String(http.StatusOK, subject)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	valid, err := IssueToken(testSecret, "ci-bot", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := IssueToken(testSecret, "ci-bot", -time.Hour)
	otherSecret, _ := IssueToken("other", "ci-bot", time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte(testSecret))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"有效 token", "Bearer " + valid, http.StatusOK, "ci-bot"},
		{"缺少 header", "", http.StatusUnauthorized, ""},
		{"格式错误", "Token " + valid, http.StatusUnauthorized, ""},
		{"已过期", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"密钥不匹配", "Bearer " + otherSecret, http.StatusUnauthorized, ""},
		{"缺少 subject", "Bearer " + noSubject, http.StatusUnauthorized, ""},
	}

	r := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestIssueToken_EmptySecret(t *testing.T) {
	if _, err := IssueToken("", "x", time.Hour); err == nil {
		t.Error("IssueToken() should reject an empty secret")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
