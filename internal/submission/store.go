// Package submission はチャレンジ受験の進行状態と残り時間を管理する。
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/repository"
)

// envelopeVersion は受験状態スロットの形式バージョン。
// 形式を変えた場合は上げること。異なるバージョンのデータは存在しないものとして扱う。
const envelopeVersion = 1

type envelope struct {
	Version int           `json:"version"`
	State   envelopeState `json:"state"`
}

type envelopeState struct {
	Submission *model.SubmissionEntry `json:"submission"`
}

// Store はユーザーごとに1件の受験エントリを永続化する。
type Store struct {
	repo   repository.SubmissionRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewStore はStoreを生成する。
func NewStore(repo repository.SubmissionRepository, logger *slog.Logger) *Store {
	return &Store{repo: repo, logger: logger, now: time.Now}
}

// Now はストアの現在時刻を返す。
func (s *Store) Now() time.Time {
	return s.now()
}

// Set はユーザーのエントリを保存する。既存のエントリは上書きされる。
func (s *Store) Set(ctx context.Context, userID string, entry *model.SubmissionEntry) error {
	data, err := json.Marshal(envelope{
		Version: envelopeVersion,
		State:   envelopeState{Submission: entry},
	})
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	if err := s.repo.Save(ctx, &repository.SubmissionRecord{
		UserID:    userID,
		Data:      data,
		Version:   envelopeVersion,
		ExpiresAt: entry.ExpiresAt,
		UpdatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// Get はユーザーのエントリを返す。存在しない場合はnilを返す。
// 壊れたデータやバージョン違いのデータも存在しないものとして扱う。
func (s *Store) Get(ctx context.Context, userID string) (*model.SubmissionEntry, error) {
	record, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if record == nil {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(record.Data, &env); err != nil {
		s.logger.Warn("ignoring corrupt submission state",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	if env.Version != envelopeVersion {
		s.logger.Warn("ignoring submission state with unsupported version",
			slog.String("user_id", userID),
			slog.Int("version", env.Version),
		)
		return nil, nil
	}
	return env.State.Submission, nil
}

// Clear はユーザーのエントリを削除する。
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear submission: %w", err)
	}
	return nil
}

// DeleteExpiredBefore は期限がbeforeより前のエントリを削除する。クリーンアップジョブから呼ばれる。
func (s *Store) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, before)
}

// RemainingSeconds は期限までの残り秒数を返す。期限を過ぎている場合は0。
func RemainingSeconds(entry *model.SubmissionEntry, now time.Time) int64 {
	if entry == nil {
		return 0
	}
	remaining := entry.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// IsExpired は残り秒数が0かどうかを返す。
func IsExpired(entry *model.SubmissionEntry, now time.Time) bool {
	return RemainingSeconds(entry, now) == 0
}
