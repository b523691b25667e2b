package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mem "wellkit/adapters/memory"
	"wellkit/config"
	"wellkit/engine"
)

func newTestService() *engine.RewardService {
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return engine.NewRewardService(storage, config.DefaultRulebook(), bus, log)
}

func TestProcessActivityRoute(t *testing.T) {
	handler := NewMux(newTestService(), nil, nil, Options{PathPrefix: "/api"})

	body := strings.NewReader(`{"type":"steps","data":{"steps":3000}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/activities", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Status != engine.StatusOK {
		t.Fatalf("expected ok status, got %s (%s)", res.Status, res.Reason)
	}
	if res.CoinsEarned != 3 {
		t.Fatalf("expected 3 coins for 3000 steps, got %d", res.CoinsEarned)
	}
}

func TestProcessActivityRejectsMissingType(t *testing.T) {
	handler := NewMux(newTestService(), nil, nil, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/activities", strings.NewReader(`{"data":{}}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSpendInsufficientBalance(t *testing.T) {
	handler := NewMux(newTestService(), nil, nil, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/coins/spend", strings.NewReader(`{"amount":50,"category":"shop"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSpendAfterEarning(t *testing.T) {
	svc := newTestService()
	handler := NewMux(svc, nil, nil, Options{PathPrefix: "/api"})

	earn := httptest.NewRequest(http.MethodPost, "/api/users/alice/activities", strings.NewReader(`{"type":"mood"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, earn)
	if rec.Code != http.StatusOK {
		t.Fatalf("earn failed: %d", rec.Code)
	}

	spend := httptest.NewRequest(http.MethodPost, "/api/users/alice/coins/spend", strings.NewReader(`{"amount":5,"category":"shop"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, spend)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	// mood earns 20 plus daily-check-in (10), first-steps (25), first_step badge (10)
	if resp["balance"] != float64(60) {
		t.Fatalf("expected balance 60 after earning 65 and spending 5, got %v", resp["balance"])
	}
}

func TestSummaryRoute(t *testing.T) {
	svc := newTestService()
	handler := NewMux(svc, nil, nil, Options{PathPrefix: "/api"})

	earn := httptest.NewRequest(http.MethodPost, "/api/users/alice/activities", strings.NewReader(`{"type":"mood"}`))
	handler.ServeHTTP(httptest.NewRecorder(), earn)

	req := httptest.NewRequest(http.MethodGet, "/api/users/alice/summary", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sum engine.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Streak.Current != 1 {
		t.Fatalf("expected streak 1, got %d", sum.Streak.Current)
	}
}

func TestHistoryRoute(t *testing.T) {
	svc := newTestService()
	handler := NewMux(svc, nil, nil, Options{PathPrefix: "/api"})

	earn := httptest.NewRequest(http.MethodPost, "/api/users/alice/activities", strings.NewReader(`{"type":"mood"}`))
	handler.ServeHTTP(httptest.NewRecorder(), earn)

	req := httptest.NewRequest(http.MethodGet, "/api/users/alice/coins/history?page=1&limit=5", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page["total"] == float64(0) {
		t.Fatal("expected at least one ledger entry")
	}
}

func TestAdminResetValidation(t *testing.T) {
	handler := NewMux(newTestService(), nil, nil, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reset?period=hourly", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/reset?period=daily", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	handler := NewMux(newTestService(), nil, nil, Options{
		PathPrefix:      "/api",
		APIKeys:         []string{"secret"},
		AllowCORSOrigin: "*",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/alice/summary", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/users/alice/summary", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
}

func TestRateLimit(t *testing.T) {
	handler := NewMux(newTestService(), nil, nil, Options{
		PathPrefix:       "/api",
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	req1 := httptest.NewRequest(http.MethodGet, "/api/users/alice/summary", nil)
	req1.Header.Set("X-API-Key", "k")
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected 200 first request, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/users/alice/summary", nil)
	req2.Header.Set("X-API-Key", "k")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec2.Code)
	}
}
