package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAccessLogCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	mw := Middleware{Logger: newLogger("prod", &buf)}
	r := gin.New()
	r.Use(mw.RequestID(), mw.AccessLog())
	r.GET("/ping", func(c *gin.Context) {
		if RequestIDFromContext(c.Request.Context()) != "req-1" {
			t.Errorf("request id missing from context")
		}
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(HeaderRequestID) != "req-1" {
		t.Fatalf("request id not echoed")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "req-1" || entry["path"] != "/ping" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestReadyzReportsFailingChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := HealthHandlers{Checks: map[string]Check{
		"store": func(context.Context) error { return nil },
		"kafka": func(context.Context) error { return errors.New("no brokers") },
	}}
	r := gin.New()
	r.GET("/readyz", h.Readyz)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Failures map[string]string `json:"failures"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Failures["kafka"] != "no brokers" || len(body.Failures) != 1 {
		t.Fatalf("unexpected failures %v", body.Failures)
	}
}
