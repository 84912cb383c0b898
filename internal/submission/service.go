package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/model"
)

// ChallengeAPI は受験に必要なバックエンドAPIの部分集合。
type ChallengeAPI interface {
	StartChallenge(ctx context.Context, token, challengeID string) (*backend.StartChallengeResponse, error)
	Submit(ctx context.Context, token, submissionID string, req backend.SubmitRequest) (*backend.SubmitResponse, error)
}

// StartRecorder は受験開始のメトリクス記録先。
type StartRecorder interface {
	RecordSubmissionStart(mode string)
}

// 受験開始の種別
const (
	StartModeCreated = "created"
	StartModeResumed = "resumed"
)

// Progress は受験の進行状況。
type Progress struct {
	Entry            *model.SubmissionEntry `json:"submission"`
	RemainingSeconds int64                  `json:"remaining_seconds"`
	Expired          bool                   `json:"expired"`
	Resumed          bool                   `json:"resumed"`
}

// Service は受験の開始・再開・提出を扱う。
type Service struct {
	api      ChallengeAPI
	store    *Store
	logger   *slog.Logger
	recorder StartRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(api ChallengeAPI, store *Store, logger *slog.Logger, recorder StartRecorder) *Service {
	return &Service{api: api, store: store, logger: logger, recorder: recorder}
}

// Start はチャレンジの受験を開始する。
// 同じチャレンジの受験中エントリが残っていて期限内であれば、それを再開する。
// 再開時は提出IDと開始・期限時刻を引き継ぎ、タイマーを巻き戻さない。
func (s *Service) Start(ctx context.Context, sess *model.Session, challengeID string) (*Progress, error) {
	userID := sess.User.ID

	existing, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.store.Now()
	if existing != nil &&
		existing.ChallengeID == challengeID &&
		existing.Status == model.SubmissionStarted &&
		!IsExpired(existing, now) {
		s.record(StartModeResumed)
		s.logger.Info("submission resumed",
			slog.String("user_id", userID),
			slog.String("challenge_id", challengeID),
			slog.String("submission_id", existing.SubmissionID),
		)
		return &Progress{
			Entry:            existing,
			RemainingSeconds: RemainingSeconds(existing, now),
			Resumed:          true,
		}, nil
	}

	resp, err := s.api.StartChallenge(ctx, sess.Token, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to start challenge: %w", err)
	}

	startedAt := resp.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	entry := model.NewSubmissionEntry(resp.SubmissionID, challengeID, startedAt, resp.DurationMinutes)

	if err := s.store.Set(ctx, userID, entry); err != nil {
		return nil, err
	}

	s.record(StartModeCreated)
	s.logger.Info("submission started",
		slog.String("user_id", userID),
		slog.String("challenge_id", challengeID),
		slog.String("submission_id", entry.SubmissionID),
	)

	return &Progress{
		Entry:            entry,
		RemainingSeconds: RemainingSeconds(entry, now),
		Expired:          IsExpired(entry, now),
	}, nil
}

// Status は現在の受験状況を返す。受験中のエントリが無い場合はSUBMISSION_NOT_FOUNDを返す。
func (s *Service) Status(ctx context.Context, sess *model.Session) (*Progress, error) {
	entry, err := s.store.Get(ctx, sess.User.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, model.NewSubmissionNotFoundError()
	}

	now := s.store.Now()
	return &Progress{
		Entry:            entry,
		RemainingSeconds: RemainingSeconds(entry, now),
		Expired:          IsExpired(entry, now),
	}, nil
}

// Submit は回答を提出し、成功したらエントリを削除する。
// 期限切れのエントリは提出せずSUBMISSION_EXPIREDを返す。
func (s *Service) Submit(ctx context.Context, sess *model.Session, answers json.RawMessage) (*backend.SubmitResponse, error) {
	entry, err := s.store.Get(ctx, sess.User.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, model.NewSubmissionNotFoundError()
	}
	if IsExpired(entry, s.store.Now()) {
		return nil, model.NewSubmissionExpiredError(entry.ChallengeID)
	}

	resp, err := s.api.Submit(ctx, sess.Token, entry.SubmissionID, backend.SubmitRequest{Answers: answers})
	if err != nil {
		return nil, fmt.Errorf("failed to submit: %w", err)
	}

	if err := s.store.Clear(ctx, sess.User.ID); err != nil {
		// 提出自体は成功しているため、削除失敗はログのみ
		s.logger.Error("failed to clear submitted entry",
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("submission submitted",
		slog.String("user_id", sess.User.ID),
		slog.String("submission_id", entry.SubmissionID),
	)
	return resp, nil
}

// Clear は受験中のエントリを明示的に削除する。
func (s *Service) Clear(ctx context.Context, sess *model.Session) error {
	return s.store.Clear(ctx, sess.User.ID)
}

func (s *Service) record(mode string) {
	if s.recorder != nil {
		s.recorder.RecordSubmissionStart(mode)
	}
}
