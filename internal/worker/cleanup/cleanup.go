// Package cleanup は期限切れセッションと受験状態の自動削除ジョブを提供する。
// 受験状態は期限（expires_at）から保持期間を過ぎたものを削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetention は期限切れの受験状態を残しておく期間のデフォルト値。
const DefaultRetention = 24 * time.Hour

// SessionPurger は期限切れセッションを削除する。session.Storeが実装する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SubmissionPurger は期限が指定時刻より前の受験状態を削除する。submission.Storeが実装する。
type SubmissionPurger interface {
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// Recorder は削除件数のメトリクス記録先。
type Recorder interface {
	RecordCleanup(kind string, deleted int64)
}

// CleanupJob は期限切れデータの削除ジョブ。
// 何度実行しても結果は変わらない。
type CleanupJob struct {
	sessions    SessionPurger
	submissions SubmissionPurger
	logger      *slog.Logger
	recorder    Recorder
	now         func() time.Time

	Retention time.Duration // 期限切れ受験状態の保持期間（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions SessionPurger, submissions SubmissionPurger, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		sessions:    sessions,
		submissions: submissions,
		logger:      logger,
		recorder:    recorder,
		now:         time.Now,
		Retention:   DefaultRetention,
	}
}

// Run は期限切れのセッションと、期限からRetentionを過ぎた受験状態を削除する。
// 片方が失敗してももう片方は実行し、両方のエラーをまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessionCount, sessionErr := j.purgeSessions(ctx)
	submissionCount, submissionErr := j.purgeSubmissions(ctx)

	if err := errors.Join(sessionErr, submissionErr); err != nil {
		return err
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_submissions", submissionCount),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) purgeSessions(ctx context.Context) (int64, error) {
	n, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}
	j.record("sessions", n)
	return n, nil
}

func (j *CleanupJob) purgeSubmissions(ctx context.Context) (int64, error) {
	before := j.now().Add(-j.Retention)
	n, err := j.submissions.DeleteExpiredBefore(ctx, before)
	if err != nil {
		j.logger.Error("受験状態の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Time("before", before),
		)
		return 0, fmt.Errorf("期限切れ受験状態の削除に失敗: %w", err)
	}
	j.record("submissions", n)
	return n, nil
}

func (j *CleanupJob) record(kind string, n int64) {
	if j.recorder != nil {
		j.recorder.RecordCleanup(kind, n)
	}
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxが終了するまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
