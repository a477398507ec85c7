package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/middleware"
)

func TestFallbackRecovery_RedirectsOnPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.FallbackRecovery(logger.NewNop(), "https://fallback.example/"))
	r.GET("/redirect", func(_ *gin.Context) {
		panic("handler blew up")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/redirect", http.NoBody)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != "https://fallback.example/" {
		t.Fatalf("Location = %q, want fallback", loc)
	}
}

func TestFallbackRecovery_PassesThroughNormally(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.FallbackRecovery(logger.NewNop(), "https://fallback.example/"))
	r.GET("/redirect", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/redirect", http.NoBody)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", w.Code, w.Body.String())
	}
}
