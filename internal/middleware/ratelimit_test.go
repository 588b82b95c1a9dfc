package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/matcha/internal/model"
)

func tinyLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    2,
		FireRate:        rate.Limit(1.0 / 60.0),
		FireBurst:       1,
		CleanupInterval: time.Minute,
	}
}

func authedRequest(tgID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
	return req.WithContext(ContextWithUser(req.Context(), &model.User{TgID: tgID, RestScores: 10}))
}

func TestGeneralMiddleware_EnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(tinyLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(1))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["code"] != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("expected code RATE_LIMIT_EXCEEDED, got %q", body["code"])
	}
	if body["category"] != "system" {
		t.Errorf("expected category system, got %q", body["category"])
	}
}

func TestGeneralMiddleware_PerUser(t *testing.T) {
	rl := NewRateLimiter(tinyLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// ユーザー1のバーストを使い切る
	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), authedRequest(1))
	}

	// ユーザー2は影響を受けない
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(2))
	if rec.Code != http.StatusOK {
		t.Errorf("expected user 2 to be unaffected, got %d", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("expected 2 limiter entries, got %d", rl.GeneralLimiterCount())
	}
}

func TestFireMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(tinyLimiterConfig())
	defer rl.Stop()

	fireHandler := rl.FireMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	generalHandler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 評価のバースト(1)を使い切る
	rec := httptest.NewRecorder()
	fireHandler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first fire to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	fireHandler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for second fire, got %d", rec.Code)
	}

	// API全般のリミッターは独立
	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusOK {
		t.Errorf("expected general limiter to be independent, got %d", rec.Code)
	}
}

func TestMiddleware_Unauthenticated(t *testing.T) {
	rl := NewRateLimiter(tinyLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestCleanup_RemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		FireRate:        rate.Limit(1),
		FireBurst:       1,
		CleanupInterval: time.Nanosecond,
	})
	defer rl.Stop()

	rl.getOrCreateGeneralLimiter(1)
	rl.generalMu.Lock()
	rl.generalLimiters[1].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("expected stale entry removed, got %d entries", rl.GeneralLimiterCount())
	}
}
