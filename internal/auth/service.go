package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/matcha/internal/model"
	"github.com/hitoshi/matcha/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BotToken      string        // initData署名検証用のボットトークン
	SessionTTL    time.Duration // セッション有効期間（発行時刻からの絶対値）
	InitialScores int           // 新規ユーザーに付与するスコア
	DefaultLocale string        // language_code未指定時のロケール
}

// Service は認証に関するビジネスロジックを提供する。
// クロックはコンストラクタで注入可能で、テストでは固定時刻に差し替える。
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。nowがnilの場合はtime.Nowを使う。
func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	config ServiceConfig,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:    users,
		sessions: sessions,
		config:   config,
		now:      now,
	}
}

// Login はinitDataを検証し、ユーザーをupsertしてセッションを発行する。
// 署名不正はINVALID_INIT_DATA、解析不能はMALFORMED_INIT_DATAを返す。
func (s *Service) Login(ctx context.Context, initData string) (*model.User, *model.Session, error) {
	if !VerifyInitData(initData, s.config.BotToken) {
		return nil, nil, model.NewInvalidInitDataError()
	}

	candidate, err := ParseUser(initData, s.config.DefaultLocale)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.CreateOrUpdateUser(ctx, candidate)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	session, err := s.createSession(ctx, user.TgID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.Int64("tg_id", user.TgID),
		slog.Bool("new_user", user.CreatedAt.Equal(user.UpdatedAt)),
	)

	return user, session, nil
}

// CreateOrUpdateUser はTelegram IDでユーザーをupsertする。
// 既存ユーザー: 候補が持つフィールドで上書きし、updated_atを更新する
// （空のlast_name/usernameは「候補が持たないフィールド」として既存値を維持）。
// 新規ユーザー: カテゴリ属性をnot_specifiedで初期化し、初期スコアを付与する。
// 同一IDの同時upsertでINSERTがユニーク制約に負けた場合は更新としてリトライする。
func (s *Service) CreateOrUpdateUser(ctx context.Context, candidate *model.UserCandidate) (*model.User, error) {
	existing, err := s.users.FindByTgID(ctx, candidate.TgID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if existing != nil {
		return s.mergeAndUpdate(ctx, existing, candidate)
	}

	now := s.now()
	newUser := &model.User{
		TgID:            candidate.TgID,
		FirstName:       candidate.FirstName,
		LastName:        candidate.LastName,
		Username:        candidate.Username,
		LanguageCode:    candidate.LanguageCode,
		Gender:          model.GenderNotSpecified,
		InterestsGender: model.InterestsNotSpecified,
		AgeRange:        model.AgeRangeNotSpecified,
		Photo:           "",
		RestScores:      s.config.InitialScores,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.users.Insert(ctx, newUser)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// ほぼ同時のログインが先にINSERTを通した。更新としてやり直す。
		existing, err := s.users.FindByTgID(ctx, candidate.TgID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user after duplicate insert: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("user disappeared after duplicate insert: %d", candidate.TgID)
		}
		return s.mergeAndUpdate(ctx, existing, candidate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	slog.Info("new user created", slog.Int64("tg_id", newUser.TgID))
	return newUser, nil
}

// mergeAndUpdate は既存ユーザーに候補のフィールドをマージして永続化する。
func (s *Service) mergeAndUpdate(ctx context.Context, existing *model.User, candidate *model.UserCandidate) (*model.User, error) {
	merged := *existing
	merged.FirstName = candidate.FirstName
	if candidate.LastName != "" {
		merged.LastName = candidate.LastName
	}
	if candidate.Username != "" {
		merged.Username = candidate.Username
	}
	merged.LanguageCode = candidate.LanguageCode
	merged.UpdatedAt = s.now()

	if err := s.users.Update(ctx, &merged); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &merged, nil
}

// GetUserBySession はセッションIDから現在のユーザーを解決する。
// セッションが存在しない・失効している・ユーザーが消えている場合はnilを返す。
// 失効セッションは参照時に削除する（遅延削除）。
func (s *Service) GetUserBySession(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if session.Expired(s.now()) {
		if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
			slog.Error("failed to delete expired session",
				slog.String("error", err.Error()),
			)
		}
		return nil, nil
	}

	user, err := s.users.FindByTgID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	// userがnilの場合は孤児セッション。失効と同様に存在しない扱いとする。
	return user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// createSession はセッションを生成し永続化する。
// 有効期限は発行時刻 + SessionTTL の絶対時刻で、アクセスによる延長はしない。
func (s *Service) createSession(ctx context.Context, userID int64) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全な256bitのセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
