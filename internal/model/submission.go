package model

import "time"

// SubmissionStatus はチャレンジ受験の状態。
type SubmissionStatus string

const (
	SubmissionStarted   SubmissionStatus = "started"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// SubmissionEntry は進行中のチャレンジ受験を表す。
// ExpiresAt は作成時に StartedAt + DurationMinutes で決まり、再開時には再計算しない。
type SubmissionEntry struct {
	SubmissionID    string           `json:"submission_id"`
	ChallengeID     string           `json:"challenge_id"`
	Status          SubmissionStatus `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
	DurationMinutes int              `json:"duration_minutes"`
}

// NewSubmissionEntry は開始時刻と制限時間から新しい受験エントリを生成する。
func NewSubmissionEntry(submissionID, challengeID string, startedAt time.Time, durationMinutes int) *SubmissionEntry {
	return &SubmissionEntry{
		SubmissionID:    submissionID,
		ChallengeID:     challengeID,
		Status:          SubmissionStarted,
		StartedAt:       startedAt,
		ExpiresAt:       startedAt.Add(time.Duration(durationMinutes) * time.Minute),
		DurationMinutes: durationMinutes,
	}
}
