package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/matcha/internal/middleware"
	"github.com/hitoshi/matcha/internal/model"
)

type mockMatchService struct {
	recordFireFunc          func(ctx context.Context, actorID, targetID int64, isLike bool) (*model.FireResult, error)
	listMatchesFunc         func(ctx context.Context, actorID int64) ([]*model.User, error)
	listRecommendationsFunc func(ctx context.Context, user *model.User, limit int) ([]*model.User, error)
}

func (m *mockMatchService) RecordFire(ctx context.Context, actorID, targetID int64, isLike bool) (*model.FireResult, error) {
	return m.recordFireFunc(ctx, actorID, targetID, isLike)
}

func (m *mockMatchService) ListMatches(ctx context.Context, actorID int64) ([]*model.User, error) {
	return m.listMatchesFunc(ctx, actorID)
}

func (m *mockMatchService) ListRecommendations(ctx context.Context, user *model.User, limit int) ([]*model.User, error) {
	return m.listRecommendationsFunc(ctx, user, limit)
}

var _ MatchServiceInterface = (*mockMatchService)(nil)

func authedReq(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithUser(req.Context(), &model.User{TgID: 1, RestScores: 30}))
}

func TestFireHandler_Match(t *testing.T) {
	service := &mockMatchService{
		recordFireFunc: func(ctx context.Context, actorID, targetID int64, isLike bool) (*model.FireResult, error) {
			if actorID != 1 || targetID != 2 || !isLike {
				t.Errorf("unexpected args: %d %d %v", actorID, targetID, isLike)
			}
			return &model.FireResult{
				IsMatch: true,
				Fire:    &model.Fire{ActorID: actorID, TargetID: targetID, IsLike: true, IsMatch: true},
			}, nil
		},
	}
	h := NewMatchHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Fire(rec, authedReq(http.MethodPost, "/api/fire", `{"targetUserId":2,"isLike":true}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result model.FireResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !result.IsMatch {
		t.Error("expected isMatch true")
	}
}

func TestFireHandler_Duplicate(t *testing.T) {
	service := &mockMatchService{
		recordFireFunc: func(ctx context.Context, actorID, targetID int64, isLike bool) (*model.FireResult, error) {
			return nil, model.NewDuplicateFireError(targetID)
		},
	}
	h := NewMatchHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Fire(rec, authedReq(http.MethodPost, "/api/fire", `{"targetUserId":2,"isLike":true}`))

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	var body apiErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != "DUPLICATE_FIRE" {
		t.Errorf("expected DUPLICATE_FIRE, got %s", body.Code)
	}
}

func TestFireHandler_UnknownTarget(t *testing.T) {
	service := &mockMatchService{
		recordFireFunc: func(ctx context.Context, actorID, targetID int64, isLike bool) (*model.FireResult, error) {
			return nil, model.NewUserNotFoundError(targetID)
		},
	}
	h := NewMatchHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Fire(rec, authedReq(http.MethodPost, "/api/fire", `{"targetUserId":99,"isLike":true}`))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestFireHandler_MissingTarget(t *testing.T) {
	h := NewMatchHandler(&mockMatchService{}, nil)

	rec := httptest.NewRecorder()
	h.Fire(rec, authedReq(http.MethodPost, "/api/fire", `{"isLike":true}`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRecommendationsHandler(t *testing.T) {
	var gotLimit int
	service := &mockMatchService{
		listRecommendationsFunc: func(ctx context.Context, user *model.User, limit int) ([]*model.User, error) {
			gotLimit = limit
			return []*model.User{{TgID: 2}, {TgID: 3}}, nil
		},
	}
	h := NewMatchHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Recommendations(rec, authedReq(http.MethodGet, "/api/recommendations?limit=5", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 5 {
		t.Errorf("expected limit 5, got %d", gotLimit)
	}

	var users []*model.User
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(users))
	}
}

func TestRecommendationsHandler_DefaultAndCappedLimit(t *testing.T) {
	var gotLimit int
	service := &mockMatchService{
		listRecommendationsFunc: func(ctx context.Context, user *model.User, limit int) ([]*model.User, error) {
			gotLimit = limit
			return []*model.User{}, nil
		},
	}
	h := NewMatchHandler(service, nil)

	h.Recommendations(httptest.NewRecorder(), authedReq(http.MethodGet, "/api/recommendations", ""))
	if gotLimit != defaultRecommendationLimit {
		t.Errorf("expected default limit %d, got %d", defaultRecommendationLimit, gotLimit)
	}

	h.Recommendations(httptest.NewRecorder(), authedReq(http.MethodGet, "/api/recommendations?limit=1000", ""))
	if gotLimit != maxRecommendationLimit {
		t.Errorf("expected capped limit %d, got %d", maxRecommendationLimit, gotLimit)
	}
}

func TestRecommendationsHandler_InvalidLimit(t *testing.T) {
	h := NewMatchHandler(&mockMatchService{}, nil)

	rec := httptest.NewRecorder()
	h.Recommendations(rec, authedReq(http.MethodGet, "/api/recommendations?limit=abc", ""))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestMatchesHandler(t *testing.T) {
	service := &mockMatchService{
		listMatchesFunc: func(ctx context.Context, actorID int64) ([]*model.User, error) {
			return []*model.User{{TgID: 2}}, nil
		},
	}
	h := NewMatchHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Matches(rec, authedReq(http.MethodGet, "/api/matches", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var users []*model.User
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(users) != 1 || users[0].TgID != 2 {
		t.Errorf("unexpected matches: %v", users)
	}
}
