package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/engine"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/infra/obs"
	"innkeep/internal/infra/storage/memory"
	"innkeep/internal/infra/validation"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	store := memory.New(memory.Options{LockTimeout: time.Second})
	for _, r := range []rooms.Room{
		{ID: "101", Company: "acme", Name: "Garden", BasePrice: money.Must(10000, "USD"), Active: true, MaxOccupancy: 2},
		{ID: "102", Company: "acme", Name: "Sea view", BasePrice: money.Must(15000, "USD"), Active: true, MaxOccupancy: 4},
	} {
		if err := store.Save(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(engine.Config{
		UoWFactory:   store,
		Validator:    validation.New(),
		Idempotency:  memory.NewIdempotencyStore(time.Hour),
		Outbox:       store.Outbox(),
		Logger:       logger,
		RetryBackoff: []time.Duration{time.Millisecond},
		Clock:        func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	health := obs.HealthHandlers{Checks: map[string]obs.Check{"store": func(context.Context) error { return nil }}}
	return NewRouter("test", obs.Middleware{Logger: logger}, health, Handlers{Service: eng, Logger: logger})
}

func do(t *testing.T, r http.Handler, method, path, company string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if company != "" {
		req.Header.Set(HeaderCompany, company)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestReservationRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	body := map[string]any{"room_id": "101", "check_in": "2025-07-01", "check_out": "2025-07-04", "guests": 2}

	rec := do(t, r, http.MethodPost, "/api/v1/reservations", "acme", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[map[string]any](t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("missing id in %v", created)
	}

	rec = do(t, r, http.MethodPost, "/api/v1/reservations", "acme", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overlapping stay, got %d", rec.Code)
	}
	conflict := decode[errorBody](t, rec)
	if conflict.Reason != "reserved" || conflict.Result == nil || len(conflict.Result.ReservedDates) != 3 {
		t.Fatalf("unexpected conflict body %+v", conflict)
	}

	rec = do(t, r, http.MethodGet, "/api/v1/reservations/"+id, "acme", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	rec = do(t, r, http.MethodGet, "/api/v1/reservations/"+id, "globex", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign tenant must not see reservation, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/v1/reservations/"+id+"/cancel", "acme", map[string]any{"reason": "guest request"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, r, http.MethodGet, "/api/v1/rooms/101/availability?check_in=2025-07-01&check_out=2025-07-04", "acme", nil)
	avail := decode[map[string]any](t, rec)
	if rec.Code != http.StatusOK || avail["available"] != true {
		t.Fatalf("expected nights released, got %d %v", rec.Code, avail)
	}
}

func TestValidationErrors(t *testing.T) {
	r := newTestRouter(t)
	cases := []struct {
		name    string
		path    string
		company string
		field   string
	}{
		{"missing company", "/api/v1/rooms/101/availability?check_in=2025-07-01&check_out=2025-07-02", "", "company_id"},
		{"bad date", "/api/v1/rooms/101/availability?check_in=07/01/2025&check_out=2025-07-02", "acme", "check_in"},
		{"inverted stay", "/api/v1/rooms/101/availability?check_in=2025-07-05&check_out=2025-07-02", "acme", "check_out"},
		{"missing grid bounds", "/api/v1/grid?from=2025-07-01", "acme", "to"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, http.MethodGet, tc.path, tc.company, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
			}
			body := decode[errorBody](t, rec)
			if body.Fields[tc.field] == "" {
				t.Fatalf("expected field %q in %v", tc.field, body.Fields)
			}
		})
	}
}

func TestBlockPeriodLifecycle(t *testing.T) {
	r := newTestRouter(t)
	rec := do(t, r, http.MethodPost, "/api/v1/block-periods", "acme", map[string]any{
		"room_ids": []string{"102"},
		"start":    "2025-08-01",
		"end":      "2025-08-03",
		"reason":   "painting",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create block: %d %s", rec.Code, rec.Body.String())
	}
	period := decode[map[string]any](t, rec)

	rec = do(t, r, http.MethodGet, "/api/v1/grid?rooms=102&from=2025-08-01&to=2025-08-04", "acme", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("grid: %d", rec.Code)
	}
	grid := decode[struct {
		Rows []struct {
			Cells []struct {
				Blocked bool `json:"blocked"`
			} `json:"cells"`
		} `json:"rooms"`
	}](t, rec)
	if len(grid.Rows) != 1 || len(grid.Rows[0].Cells) != 4 {
		t.Fatalf("unexpected grid shape %+v", grid)
	}
	for i, want := range []bool{true, true, true, false} {
		if grid.Rows[0].Cells[i].Blocked != want {
			t.Fatalf("day %d: expected blocked=%v", i, want)
		}
	}

	rec = do(t, r, http.MethodPost, "/api/v1/block-periods/"+period["id"].(string)+"/deactivate", "acme", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, r, http.MethodPost, "/api/v1/block-periods/missing/deactivate", "acme", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRuleUpsertStatus(t *testing.T) {
	r := newTestRouter(t)
	rule := map[string]any{"id": "min-3", "type": "MIN_STAY", "config": map[string]any{"nights": 3}, "priority": 1}
	if rec := do(t, r, http.MethodPut, "/api/v1/rules", "acme", rule); rec.Code != http.StatusCreated {
		t.Fatalf("first upsert: %d %s", rec.Code, rec.Body.String())
	}
	rule["config"] = map[string]any{"nights": 2}
	if rec := do(t, r, http.MethodPut, "/api/v1/rules", "acme", rule); rec.Code != http.StatusOK {
		t.Fatalf("second upsert: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, r, http.MethodGet, "/api/v1/rooms/101/availability?check_in=2025-07-01&check_out=2025-07-02", "acme", nil)
	avail := decode[map[string]any](t, rec)
	if avail["available"] != false || avail["reason"] != "min_stay" {
		t.Fatalf("expected min stay rejection, got %v", avail)
	}
}

func TestHealthRoutes(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/livez", "/readyz"} {
		if rec := do(t, r, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}
}
