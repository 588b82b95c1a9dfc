// Package match は評価・マッチング・候補推薦のビジネスロジックを提供する。
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/matcha/internal/model"
	"github.com/hitoshi/matcha/internal/repository"
)

// Notifier はマッチ成立をユーザーに通知する。
// 通知の失敗はマッチの成立自体には影響しない（ベストエフォート）。
type Notifier interface {
	NotifyMatch(ctx context.Context, to, with *model.User) error
}

// Service は評価とマッチングのビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	fires    repository.FireRepository
	notifier Notifier // nilの場合は通知しない
	now      func() time.Time
}

// NewService はServiceを生成する。nowがnilの場合はtime.Nowを使う。
func NewService(
	users repository.UserRepository,
	fires repository.FireRepository,
	notifier Notifier,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:    users,
		fires:    fires,
		notifier: notifier,
		now:      now,
	}
}

// RecordFire は評価を記録し、相互ライクが成立した場合はマッチを確定して通知する。
// 記録成功後にスコアを1消費する。記録と消費は分離されており、
// 消費の失敗は記録を取り消さない（重複評価はDUPLICATE_FIREで弾かれるため二重課金は起きない）。
// 自己評価はVALIDATION_ERROR、未知のユーザーはUSER_NOT_FOUND、
// 評価済みの相手への再評価はDUPLICATE_FIREを返す。
func (s *Service) RecordFire(ctx context.Context, actorID, targetID int64, isLike bool) (*model.FireResult, error) {
	if actorID == targetID {
		return nil, model.NewValidationError("targetUserId", "cannot rate yourself")
	}

	actor, err := s.users.FindByTgID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find actor: %w", err)
	}
	if actor == nil {
		return nil, model.NewUserNotFoundError(actorID)
	}

	target, err := s.users.FindByTgID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to find target: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError(targetID)
	}

	fire := &model.Fire{
		ActorID:   actorID,
		TargetID:  targetID,
		IsLike:    isLike,
		CreatedAt: s.now().UTC(),
	}

	result, err := s.fires.Record(ctx, fire)
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, model.NewDuplicateFireError(targetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record fire: %w", err)
	}

	// 残高は条件付きUPDATEで減算するため負にはならない。
	// ScoreGateと競合して残高が尽きていた場合もここでは記録を優先する。
	if _, err := s.users.AddScores(ctx, actorID, -1); err != nil {
		if errors.Is(err, repository.ErrInsufficientScores) {
			slog.Warn("fire recorded without charge",
				slog.Int64("actor_id", actorID),
			)
		} else {
			slog.Error("failed to charge score for fire",
				slog.Int64("actor_id", actorID),
				slog.String("error", err.Error()),
			)
		}
	}

	if result.IsMatch {
		slog.Info("mutual match confirmed",
			slog.Int64("actor_id", actorID),
			slog.Int64("target_id", targetID),
		)
		s.notifyMatch(ctx, actor, target)
	}

	return result, nil
}

// notifyMatch は両ユーザーにマッチ成立を通知する。失敗はログに残すのみ。
func (s *Service) notifyMatch(ctx context.Context, actor, target *model.User) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyMatch(ctx, actor, target); err != nil {
		slog.Error("failed to notify match",
			slog.Int64("tg_id", actor.TgID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.notifier.NotifyMatch(ctx, target, actor); err != nil {
		slog.Error("failed to notify match",
			slog.Int64("tg_id", target.TgID),
			slog.String("error", err.Error()),
		)
	}
}

// ListMatches は相互マッチ済みの相手のユーザー一覧を返す。
func (s *Service) ListMatches(ctx context.Context, actorID int64) ([]*model.User, error) {
	matchedIDs, err := s.fires.ListMatchedTargetIDs(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matched targets: %w", err)
	}
	if len(matchedIDs) == 0 {
		return []*model.User{}, nil
	}

	users, err := s.users.ListByTgIDs(ctx, matchedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list matched users: %w", err)
	}

	return users, nil
}

// ListRecommendations はuserの未評価の候補一覧を返す。
// 評価済みの相手と自分自身を除外し、希望性別で絞り込む。
func (s *Service) ListRecommendations(ctx context.Context, user *model.User, limit int) ([]*model.User, error) {
	ratedIDs, err := s.fires.ListRatedTargetIDs(ctx, user.TgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rated targets: %w", err)
	}

	candidates, err := s.users.ListRecommendations(ctx, user, ratedIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	if candidates == nil {
		candidates = []*model.User{}
	}

	return candidates, nil
}
