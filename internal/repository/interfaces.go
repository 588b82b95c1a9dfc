// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/matcha/internal/model"
)

// ErrDuplicateKey はユニーク制約違反を表す。
// 呼び出し側はerrors.Isで判別し、ドメインエラーに変換する。
var ErrDuplicateKey = errors.New("duplicate key")

// ErrInsufficientScores は残高を下回るスコア減算を表す。
var ErrInsufficientScores = errors.New("insufficient scores")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByTgID は指定Telegram IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByTgID(ctx context.Context, tgID int64) (*model.User, error)

	// Insert は新規ユーザーを作成する。tg_idが既に存在する場合はErrDuplicateKeyを返す。
	Insert(ctx context.Context, user *model.User) error

	// Update は既存ユーザーを全フィールド上書きで更新する。
	Update(ctx context.Context, user *model.User) error

	// AddScores はスコア残高をdeltaだけ増減し、更新後の残高を返す。
	// 減算で残高が負になる場合は何も変更せずErrInsufficientScoresを返す。
	// 単一のconditional UPDATEで実行され、並行呼び出しでも残高が負にならない。
	AddScores(ctx context.Context, tgID int64, delta int) (int, error)

	// UpdateProfile は自己申告プロフィール（性別・希望性別・年齢帯・写真）を更新する。
	UpdateProfile(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error

	// ListRecommendations はuserの候補一覧を返す。
	// user自身とexcludedに含まれるIDを除外し、userのinterestsGenderが
	// not_specified以外の場合は性別で絞り込む（"both"は絞り込みなし）。
	ListRecommendations(ctx context.Context, user *model.User, excluded []int64, limit int) ([]*model.User, error)

	// ListByTgIDs は指定IDのユーザー一覧を返す。存在しないIDは無視される。
	ListByTgIDs(ctx context.Context, tgIDs []int64) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	// 期限切れ判定は呼び出し側（authサービス）が行い、遅延削除する。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにならない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired はnow以前に失効した全セッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// FireRepository は評価（ライク/ディスライク）データの永続化インターフェース。
type FireRepository interface {
	// Record は評価を1件永続化し、相互ライクの判定と確定を行う。
	// プロトコル: 自分側の行を先に書き、その後に逆方向のライク行を読む。
	// 逆方向のライクが既に存在する場合、両方の行にis_match=trueと
	// 同一のmatched_atを設定する（2番目の書き込み側が両方を確定させる）。
	// 全体が単一トランザクションで実行される。
	// (actor,target)が既に存在する場合はErrDuplicateKeyを返す。
	Record(ctx context.Context, fire *model.Fire) (*model.FireResult, error)

	// ListRatedTargetIDs はactorが評価済みの相手ID一覧を返す。
	ListRatedTargetIDs(ctx context.Context, actorID int64) ([]int64, error)

	// ListMatchedTargetIDs はactorの相互マッチ済み相手ID一覧を返す。
	ListMatchedTargetIDs(ctx context.Context, actorID int64) ([]int64, error)

	// RepairHalfMatched は片側のみis_matchが立っている組の逆側を修復し、修復件数を返す。
	// クラッシュ等で生じた不整合の自己修復に使う。
	RepairHalfMatched(ctx context.Context) (int64, error)
}

// PaymentRepository は決済データの永続化インターフェース。
type PaymentRepository interface {
	// Create は決済レコードを作成する。
	Create(ctx context.Context, payment *model.Payment) error

	// FindByID は指定IDの決済を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Payment, error)

	// ListByUserID はユーザーの決済履歴を作成日時降順で返す。
	ListByUserID(ctx context.Context, userID int64, offset, limit int) ([]*model.Payment, error)

	// MarkCompleted はpending状態の決済をcompletedに遷移させる。
	// pendingでない場合は何も変更せずfalseを返す。
	// transactionIdが既に使われている場合はErrDuplicateKeyを返す。
	MarkCompleted(ctx context.Context, id, transactionID string, completedAt time.Time) (bool, error)

	// MarkCancelled はpending状態の決済をcancelledに遷移させる。
	// pendingでない場合は何も変更せずfalseを返す。
	MarkCancelled(ctx context.Context, id string) (bool, error)
}
