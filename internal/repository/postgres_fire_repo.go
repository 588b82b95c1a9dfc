package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/matcha/internal/model"
)

// PostgresFireRepo はPostgreSQLを使用した評価リポジトリ。
type PostgresFireRepo struct {
	db *sql.DB

	// テストで現在時刻を固定するためのフック
	now func() time.Time
}

// NewPostgresFireRepo はPostgresFireRepoを生成する。
func NewPostgresFireRepo(db *sql.DB) *PostgresFireRepo {
	return &PostgresFireRepo{db: db, now: time.Now}
}

// Record は評価を1件永続化し、相互ライクの判定と確定を単一トランザクションで行う。
//
// 順序が正しさの要:
//  1. ユーザー組（方向を正規化したペア）単位のアドバイザリロックを取る。
//     ほぼ同時のA→BとB→Aの2呼び出しがREAD COMMITTEDの下で互いの
//     未コミット行を見落とし、どちらもマッチを確定できない競合を防ぐ。
//  2. 自分側の行をINSERTする。(actor,target)のユニーク制約が重複を弾く。
//  3. INSERTが成功した後で逆方向のライク行を読み、存在すればこの呼び出しが
//     「2番目の書き込み側」として両方向の行に同一のmatched_atで
//     is_match=trueを設定する。
//
// ロックはトランザクション終了時に自動解放される。
func (r *PostgresFireRepo) Record(ctx context.Context, fire *model.Fire) (*model.FireResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. ペア単位で直列化する
	_, err = tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(
		   hashtextextended(least($1::bigint, $2::bigint)::text || ':' ||
		                    greatest($1::bigint, $2::bigint)::text, 0))`,
		fire.ActorID, fire.TargetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pair lock: %w", err)
	}

	// 2. 自分側の行を先に書く
	_, err = tx.ExecContext(ctx,
		`INSERT INTO fires (actor_id, target_id, is_like, is_match, created_at)
		 VALUES ($1, $2, $3, FALSE, $4)`,
		fire.ActorID, fire.TargetID, fire.IsLike, fire.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert fire: %w", err)
	}

	recorded := &model.Fire{
		ActorID:   fire.ActorID,
		TargetID:  fire.TargetID,
		IsLike:    fire.IsLike,
		CreatedAt: fire.CreatedAt,
	}

	// ディスライクは相互判定の対象外
	if !fire.IsLike {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &model.FireResult{IsMatch: false, Fire: recorded}, nil
	}

	// 3. 逆方向のライク行を読む（自分側のINSERT成功後）
	var reverseExists bool
	err = tx.QueryRowContext(ctx,
		`SELECT TRUE FROM fires
		 WHERE actor_id = $1 AND target_id = $2 AND is_like = TRUE`,
		fire.TargetID, fire.ActorID,
	).Scan(&reverseExists)

	if err == sql.ErrNoRows {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &model.FireResult{IsMatch: false, Fire: recorded}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check reverse fire: %w", err)
	}

	// 両方向をまとめて確定する
	matchedAt := r.now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE fires
		 SET is_match = TRUE, matched_at = $3
		 WHERE (actor_id = $1 AND target_id = $2)
		    OR (actor_id = $2 AND target_id = $1)`,
		fire.ActorID, fire.TargetID, matchedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark matched pair: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	recorded.IsMatch = true
	recorded.MatchedAt = &matchedAt
	return &model.FireResult{IsMatch: true, Fire: recorded}, nil
}

// ListRatedTargetIDs はactorが評価済みの相手ID一覧を返す。
func (r *PostgresFireRepo) ListRatedTargetIDs(ctx context.Context, actorID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT target_id FROM fires WHERE actor_id = $1`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rated targets: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ListMatchedTargetIDs はactorの相互マッチ済み相手ID一覧を返す。
func (r *PostgresFireRepo) ListMatchedTargetIDs(ctx context.Context, actorID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT target_id FROM fires
		 WHERE actor_id = $1 AND is_like = TRUE AND is_match = TRUE`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matched targets: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// RepairHalfMatched は片側のみis_matchが立っている組の逆側を修復し、修復件数を返す。
// 逆側のmatched_atは確定済み側の値をそのまま引き継ぐ。
func (r *PostgresFireRepo) RepairHalfMatched(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE fires AS f
		 SET is_match = TRUE, matched_at = m.matched_at
		 FROM fires AS m
		 WHERE m.actor_id = f.target_id
		   AND m.target_id = f.actor_id
		   AND m.is_match = TRUE
		   AND m.is_like = TRUE
		   AND f.is_like = TRUE
		   AND f.is_match = FALSE`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to repair half-matched fires: %w", err)
	}

	repaired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return repaired, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ FireRepository = (*PostgresFireRepo)(nil)
