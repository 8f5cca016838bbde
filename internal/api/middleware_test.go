package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestLogger_CorrelationID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())

	var hadLogger bool
	r.GET("/ping", func(c *gin.Context) {
		hadLogger = zerolog.Ctx(c.Request.Context()).GetLevel() != zerolog.Disabled
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := serve(r, req)
	if got := w.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Errorf("Expected correlation ID to be echoed, got %q", got)
	}
	if !hadLogger {
		t.Error("Expected a logger in the request context")
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Header().Get(CorrelationHeader) == "" {
		t.Error("Expected a generated correlation ID")
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantAllow  string
		wantStatus int
	}{
		{"allowed origin", []string{"http://localhost:3000"}, "http://localhost:3000", http.MethodGet, "http://localhost:3000", http.StatusOK},
		{"other origin", []string{"http://localhost:3000"}, "http://evil.example", http.MethodGet, "", http.StatusOK},
		{"wildcard", []string{"*"}, "http://any.example", http.MethodGet, "http://any.example", http.StatusOK},
		{"preflight", []string{"http://localhost:3000"}, "http://localhost:3000", http.MethodOptions, "http://localhost:3000", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.origins))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/x", nil)
			req.Header.Set("Origin", tt.origin)
			w := serve(r, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Expected allow origin %q, got %q", tt.wantAllow, got)
			}
		})
	}
}
