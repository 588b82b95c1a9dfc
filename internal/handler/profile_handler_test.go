package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/matcha/internal/model"
	"github.com/hitoshi/matcha/internal/security"
)

type mockProfileUpdater struct {
	updateProfileFunc func(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error
}

func (m *mockProfileUpdater) UpdateProfile(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error {
	return m.updateProfileFunc(ctx, tgID, gender, interests, ageRange, photo)
}

type mockPhotoStorage struct {
	presignUploadFunc   func(ctx context.Context, tgID int64, ttl time.Duration) (string, error)
	presignDownloadFunc func(ctx context.Context, tgID int64, ttl time.Duration) (string, error)
}

func (m *mockPhotoStorage) PresignUpload(ctx context.Context, tgID int64, ttl time.Duration) (string, error) {
	return m.presignUploadFunc(ctx, tgID, ttl)
}

func (m *mockPhotoStorage) PresignDownload(ctx context.Context, tgID int64, ttl time.Duration) (string, error) {
	return m.presignDownloadFunc(ctx, tgID, ttl)
}

type mockPhotoURLValidator struct {
	verifyPhotoURLFunc func(ctx context.Context, rawURL string) error
}

func (m *mockPhotoURLValidator) VerifyPhotoURL(ctx context.Context, rawURL string) error {
	if m.verifyPhotoURLFunc == nil {
		return nil
	}
	return m.verifyPhotoURLFunc(ctx, rawURL)
}

func newProfileHandler(updater ProfileUpdater, storage PhotoStorage) *ProfileHandler {
	return NewProfileHandler(updater, security.NewProfileSanitizer(), &mockPhotoURLValidator{}, storage)
}

func TestUpdateProfile(t *testing.T) {
	var gotGender model.Gender
	var gotPhoto string
	updater := &mockProfileUpdater{
		updateProfileFunc: func(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error {
			gotGender = gender
			gotPhoto = photo
			return nil
		},
	}
	h := newProfileHandler(updater, nil)

	body := `{"gender":"female","interestsGender":"male","ageRange":"26-35","photo":"https://cdn.example.com/p.jpg"}`
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, authedReq(http.MethodPut, "/api/profile", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotGender != model.GenderFemale {
		t.Errorf("expected gender female, got %s", gotGender)
	}
	if gotPhoto != "https://cdn.example.com/p.jpg" {
		t.Errorf("unexpected photo: %s", gotPhoto)
	}

	var user model.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if user.Gender != model.GenderFemale || user.AgeRange != model.AgeRange26to35 {
		t.Errorf("unexpected user in response: %+v", user)
	}
}

func TestUpdateProfile_InvalidEnum(t *testing.T) {
	h := newProfileHandler(&mockProfileUpdater{}, nil)

	bodies := []string{
		`{"gender":"other","interestsGender":"male","ageRange":"26-35"}`,
		`{"gender":"male","interestsGender":"anyone","ageRange":"26-35"}`,
		`{"gender":"male","interestsGender":"male","ageRange":"20-30"}`,
	}
	for _, body := range bodies {
		rec := httptest.NewRecorder()
		h.UpdateProfile(rec, authedReq(http.MethodPut, "/api/profile", body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestUpdateProfile_UnsafePhotoURL(t *testing.T) {
	// メタデータIPは静的検証で弾かれるため、本物のガードを使っても
	// ネットワークアクセスは発生しない。
	h := NewProfileHandler(&mockProfileUpdater{}, security.NewProfileSanitizer(), security.NewPhotoURLGuard(), nil)

	body := `{"gender":"male","interestsGender":"female","ageRange":"18-25","photo":"https://169.254.169.254/x.jpg"}`
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, authedReq(http.MethodPut, "/api/profile", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for metadata IP photo URL, got %d", rec.Code)
	}
}

func TestUpdateProfile_UnreachablePhotoURL(t *testing.T) {
	var gotURL string
	validator := &mockPhotoURLValidator{
		verifyPhotoURLFunc: func(ctx context.Context, rawURL string) error {
			gotURL = rawURL
			return fmt.Errorf("photo URL returned status 404")
		},
	}
	h := NewProfileHandler(&mockProfileUpdater{}, security.NewProfileSanitizer(), validator, nil)

	body := `{"gender":"male","interestsGender":"female","ageRange":"18-25","photo":"https://cdn.example.com/gone.jpg"}`
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, authedReq(http.MethodPut, "/api/profile", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unreachable photo URL, got %d", rec.Code)
	}
	if gotURL != "https://cdn.example.com/gone.jpg" {
		t.Errorf("expected validator to receive the photo URL, got %q", gotURL)
	}
}

func TestUpdateProfile_SanitizesPhotoField(t *testing.T) {
	var gotPhoto string
	updater := &mockProfileUpdater{
		updateProfileFunc: func(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error {
			gotPhoto = photo
			return nil
		},
	}
	h := newProfileHandler(updater, nil)

	// HTMLタグは除去され、空として扱われる
	body := `{"gender":"male","interestsGender":"female","ageRange":"18-25","photo":"<script>x</script>"}`
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, authedReq(http.MethodPut, "/api/profile", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotPhoto != "" {
		t.Errorf("expected sanitized photo to be empty, got %q", gotPhoto)
	}
}

func TestCreatePhotoUpload(t *testing.T) {
	var savedPhoto string
	updater := &mockProfileUpdater{
		updateProfileFunc: func(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error {
			savedPhoto = photo
			return nil
		},
	}
	storage := &mockPhotoStorage{
		presignUploadFunc: func(ctx context.Context, tgID int64, ttl time.Duration) (string, error) {
			return fmt.Sprintf("https://s3.example.com/upload/%d", tgID), nil
		},
		presignDownloadFunc: func(ctx context.Context, tgID int64, ttl time.Duration) (string, error) {
			return fmt.Sprintf("https://s3.example.com/get/%d", tgID), nil
		},
	}
	h := newProfileHandler(updater, storage)

	rec := httptest.NewRecorder()
	h.CreatePhotoUpload(rec, authedReq(http.MethodPost, "/api/profile/photo", ""))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp photoUploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.UploadURL != "https://s3.example.com/upload/1" {
		t.Errorf("unexpected upload URL: %s", resp.UploadURL)
	}
	if savedPhoto != resp.PhotoURL {
		t.Errorf("expected photo URL persisted, saved %q response %q", savedPhoto, resp.PhotoURL)
	}
}

func TestCreatePhotoUpload_StorageDisabled(t *testing.T) {
	h := newProfileHandler(&mockProfileUpdater{}, nil)

	rec := httptest.NewRecorder()
	h.CreatePhotoUpload(rec, authedReq(http.MethodPost, "/api/profile/photo", ""))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when storage is disabled, got %d", rec.Code)
	}
}
