package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/matcha/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `tg_id, first_name, last_name, username, language_code,
	 gender, interests_gender, age_range, photo, rest_scores, created_at, updated_at`

func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.TgID, &user.FirstName, &user.LastName, &user.Username, &user.LanguageCode,
		&user.Gender, &user.InterestsGender, &user.AgeRange, &user.Photo, &user.RestScores,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByTgID は指定Telegram IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByTgID(ctx context.Context, tgID int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tg_id = $1`,
		tgID,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// Insert は新規ユーザーを作成する。tg_idが既に存在する場合はErrDuplicateKeyを返す。
func (r *PostgresUserRepo) Insert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (tg_id, first_name, last_name, username, language_code,
		  gender, interests_gender, age_range, photo, rest_scores, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.TgID, user.FirstName, user.LastName, user.Username, user.LanguageCode,
		user.Gender, user.InterestsGender, user.AgeRange, user.Photo, user.RestScores,
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update は既存ユーザーを全フィールド上書きで更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, username = $4, language_code = $5,
		     gender = $6, interests_gender = $7, age_range = $8, photo = $9,
		     rest_scores = $10, updated_at = $11
		 WHERE tg_id = $1`,
		user.TgID, user.FirstName, user.LastName, user.Username, user.LanguageCode,
		user.Gender, user.InterestsGender, user.AgeRange, user.Photo, user.RestScores,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// AddScores はスコア残高をdeltaだけ増減し、更新後の残高を返す。
// 減算はrest_scoresが十分にある行にのみ適用されるため、残高が負になることはない。
func (r *PostgresUserRepo) AddScores(ctx context.Context, tgID int64, delta int) (int, error) {
	var balance int
	err := r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET rest_scores = rest_scores + $2, updated_at = now()
		 WHERE tg_id = $1 AND rest_scores + $2 >= 0
		 RETURNING rest_scores`,
		tgID, delta,
	).Scan(&balance)

	if err == sql.ErrNoRows {
		return 0, ErrInsufficientScores
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update scores: %w", err)
	}

	return balance, nil
}

// UpdateProfile は自己申告プロフィールを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, tgID int64, gender model.Gender, interests model.InterestsGender, ageRange model.AgeRange, photo string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET gender = $2, interests_gender = $3, age_range = $4, photo = $5, updated_at = now()
		 WHERE tg_id = $1`,
		tgID, gender, interests, ageRange, photo,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// ListRecommendations はuserの候補一覧を返す。
// user自身とexcludedを除外し、希望性別が指定されている場合は性別で絞り込む。
func (r *PostgresUserRepo) ListRecommendations(ctx context.Context, user *model.User, excluded []int64, limit int) ([]*model.User, error) {
	// 自分自身も除外リストに含める
	excludeIDs := make([]int64, 0, len(excluded)+1)
	excludeIDs = append(excludeIDs, excluded...)
	excludeIDs = append(excludeIDs, user.TgID)

	query := `SELECT ` + userColumns + `
		 FROM users
		 WHERE tg_id <> ALL($1)`
	args := []interface{}{pq.Array(excludeIDs)}

	// "both"とnot_specifiedは性別での絞り込みなし
	if user.InterestsGender == model.InterestsMale || user.InterestsGender == model.InterestsFemale {
		query += ` AND gender = $2`
		args = append(args, string(user.InterestsGender))
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recommendations: %w", err)
	}

	return users, nil
}

// ListByTgIDs は指定IDのユーザー一覧を返す。存在しないIDは無視される。
func (r *PostgresUserRepo) ListByTgIDs(ctx context.Context, tgIDs []int64) ([]*model.User, error) {
	if len(tgIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tg_id = ANY($1)`,
		pq.Array(tgIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// isUniqueViolation はPostgreSQLのユニーク制約違反（SQLSTATE 23505）かを判定する。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
