package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresSubmissionRepo はPostgreSQLを使用した受験状態リポジトリ。
type PostgresSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSubmissionRepo はPostgresSubmissionRepoを生成する。
func NewPostgresSubmissionRepo(db *sql.DB) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{db: db}
}

// Save はユーザーのスロットを上書き保存する。
func (r *PostgresSubmissionRepo) Save(ctx context.Context, record *SubmissionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO submission_store (user_id, data, version, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET data = EXCLUDED.data, version = EXCLUDED.version,
		     expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		record.UserID, record.Data, record.Version, record.ExpiresAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save submission state: %w", err)
	}
	return nil
}

// FindByUserID はユーザーのスロットを取得する。見つからない場合はnilを返す。
// 期限切れかどうかは判定しない。残り時間の扱いは呼び出し側が決める。
func (r *PostgresSubmissionRepo) FindByUserID(ctx context.Context, userID string) (*SubmissionRecord, error) {
	record := &SubmissionRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, data, version, expires_at, updated_at
		 FROM submission_store
		 WHERE user_id = $1`,
		userID,
	).Scan(&record.UserID, &record.Data, &record.Version, &record.ExpiresAt, &record.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find submission state: %w", err)
	}

	return record, nil
}

// DeleteByUserID はユーザーのスロットを削除する。
func (r *PostgresSubmissionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM submission_store WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete submission state: %w", err)
	}
	return nil
}

// DeleteExpiredBefore は期限がbeforeより前のスロットを削除する。
func (r *PostgresSubmissionRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM submission_store WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired submission states: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SubmissionRepository = (*PostgresSubmissionRepo)(nil)
