package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"home-service-server/testutil"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	r := testutil.SetupRouter()
	r.Use(rl.Middleware(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if w := testutil.DoRequest(r, http.MethodGet, "/ping", nil, ""); w.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	w := testutil.DoRequest(r, http.MethodGet, "/ping", nil, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if testutil.ParseResponse(w)["error"] != "rate_limited" {
		t.Errorf("body = %s", w.Body.String())
	}

	if removed := rl.Cleanup(time.Hour); removed != 0 {
		t.Errorf("Cleanup(1h) removed %d fresh limiters", removed)
	}
	if removed := rl.Cleanup(-time.Second); removed != 1 {
		t.Errorf("Cleanup(-1s) removed %d, want 1", removed)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := testutil.DoRequest(r, http.MethodGet, "/", nil, "")
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestInputValidationMiddleware(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(InputValidationMiddleware(64))
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := testutil.DoRequest(r, http.MethodPost, "/echo", map[string]string{"a": "b"}, "")
	if w.Code != http.StatusOK {
		t.Errorf("json body status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("form body status = %d, want 415", rec.Code)
	}

	big := map[string]string{"payload": strings.Repeat("x", 100)}
	if w := testutil.DoRequest(r, http.MethodPost, "/echo", big, ""); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(RequestID(), Logger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := testutil.DoRequest(r, http.MethodGet, "/", nil, "")
	if id := w.Header().Get("X-Request-ID"); id == "" || id != w.Body.String() {
		t.Errorf("generated request id = %q, body %q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("propagated request id = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := testutil.DoRequest(r, http.MethodGet, "/boom", nil, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
