package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

func testRouter(t *testing.T, am *AuthMiddleware) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.DELETE("/admin", am.RequireAuth(), am.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func newAuth(t *testing.T, adminKey string) *AuthMiddleware {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	hash := ""
	if adminKey != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt: %v", err)
		}
		hash = string(h)
	}
	return NewAuthMiddleware(log, "test-secret", hash)
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	r := testRouter(t, newAuth(t, ""))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthAcceptsValidJWT(t *testing.T) {
	am := newAuth(t, "")
	token, err := am.IssueToken("tester", false, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	r := testRouter(t, am)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	am := newAuth(t, "")
	token, err := am.IssueToken("sse-client", false, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	r := testRouter(t, am)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	am := newAuth(t, "")
	token, err := am.IssueToken("tester", false, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	r := testRouter(t, am)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAdminKeyPath(t *testing.T) {
	am := newAuth(t, "super-secret-key")
	r := testRouter(t, am)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin", nil)
	req.Header.Set("X-Api-Key", "super-secret-key")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/admin", nil)
	req.Header.Set("X-Api-Key", "wrong-key")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdminBlocksNonAdminJWT(t *testing.T) {
	am := newAuth(t, "")
	token, err := am.IssueToken("tester", false, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	r := testRouter(t, am)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	admin, err := am.IssueToken("boss", true, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
