package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/matcha/internal/middleware"
	"github.com/hitoshi/matcha/internal/model"
)

// photoUploadTTL は写真アップロード用署名付きURLの有効期間。
const photoUploadTTL = 15 * time.Minute

// photoDownloadTTL は写真取得用署名付きURLの有効期間。
const photoDownloadTTL = 7 * 24 * time.Hour

// ProfileUpdater はプロフィール更新のためのインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error
}

// TextSanitizer はユーザー入力テキストのサニタイズインターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// PhotoURLValidator は写真URLの検証インターフェース。
// security.PhotoURLGuardServiceの部分集合として定義する。
type PhotoURLValidator interface {
	VerifyPhotoURL(ctx context.Context, rawURL string) error
}

// PhotoStorage は写真オブジェクトストレージのインターフェース。
// ストレージが未設定のデプロイではnilが渡される。
type PhotoStorage interface {
	PresignUpload(ctx context.Context, tgID int64, ttl time.Duration) (string, error)
	PresignDownload(ctx context.Context, tgID int64, ttl time.Duration) (string, error)
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	updater   ProfileUpdater
	sanitizer TextSanitizer
	validator PhotoURLValidator
	storage   PhotoStorage // nilの場合は写真アップロード無効
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(updater ProfileUpdater, sanitizer TextSanitizer, validator PhotoURLValidator, storage PhotoStorage) *ProfileHandler {
	return &ProfileHandler{
		updater:   updater,
		sanitizer: sanitizer,
		validator: validator,
		storage:   storage,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Gender          string `json:"gender"`
	InterestsGender string `json:"interestsGender"`
	AgeRange        string `json:"ageRange"`
	Photo           string `json:"photo"`
}

// UpdateProfile は自己申告プロフィールの更新を処理する。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	gender := model.Gender(req.Gender)
	if !gender.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("gender", "unknown value"))
		return
	}

	interests := model.InterestsGender(req.InterestsGender)
	if !interests.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("interestsGender", "unknown value"))
		return
	}

	ageRange := model.AgeRange(req.AgeRange)
	if !ageRange.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("ageRange", "unknown value"))
		return
	}

	// 写真URLはHTMLを除去した上で到達先の安全性を検証する。空は「写真なし」。
	// 検証はSSRF防止付きクライアント経由の到達性確認を含む。
	photo := h.sanitizer.SanitizeText(req.Photo)
	if photo != "" {
		if err := h.validator.VerifyPhotoURL(r.Context(), photo); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("photo", err.Error()))
			return
		}
	}

	if err := h.updater.UpdateProfile(r.Context(), user.TgID, gender, interests, ageRange, photo); err != nil {
		handleServiceError(w, err)
		return
	}

	user.Gender = gender
	user.InterestsGender = interests
	user.AgeRange = ageRange
	user.Photo = photo

	writeJSON(w, http.StatusOK, user)
}

// photoUploadResponse は写真アップロードURL発行のレスポンス。
type photoUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	PhotoURL  string `json:"photoUrl"`
}

// CreatePhotoUpload は写真アップロード用の署名付きURLを発行し、
// 取得用URLをプロフィールに保存する。
// POST /api/profile/photo
func (h *ProfileHandler) CreatePhotoUpload(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if h.storage == nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     "PHOTO_STORAGE_DISABLED",
			Message:  "写真ストレージが設定されていません。",
			Category: "system",
			Action:   "写真URLを直接プロフィールに設定してください。",
		})
		return
	}

	uploadURL, err := h.storage.PresignUpload(r.Context(), user.TgID, photoUploadTTL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	photoURL, err := h.storage.PresignDownload(r.Context(), user.TgID, photoDownloadTTL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.updater.UpdateProfile(r.Context(), user.TgID, user.Gender, user.InterestsGender, user.AgeRange, photoURL); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, photoUploadResponse{
		UploadURL: uploadURL,
		PhotoURL:  photoURL,
	})
}
