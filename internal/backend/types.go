package backend

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/kanux/internal/model"
)

// LoginResponse はPOST /auth/login のレスポンス。
type LoginResponse struct {
	Token     string     `json:"token"`
	SessionID string     `json:"session_id"`
	User      model.User `json:"user"`
}

// PlanResponse はサブスクリプション取得APIのレスポンス。
// features はユーザー種別ごとに形が異なるため、生のJSONのまま保持する。
type PlanResponse struct {
	Plan struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"plan"`
	Features map[string]json.RawMessage `json:"features"`
}

// StartChallengeResponse はチャレンジ開始APIのレスポンス。
type StartChallengeResponse struct {
	SubmissionID    string    `json:"submission_id"`
	ChallengeID     string    `json:"challenge_id"`
	StartedAt       time.Time `json:"started_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// SubmitRequest は提出APIのリクエストボディ。
type SubmitRequest struct {
	Answers json.RawMessage `json:"answers"`
}

// SubmitResponse は提出APIのレスポンス。
type SubmitResponse struct {
	SubmissionID string    `json:"submission_id"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Conversation は会話一覧の1件。
type Conversation struct {
	ID            string    `json:"id"`
	Participant   string    `json:"participant"`
	LastMessage   string    `json:"last_message"`
	UnreadCount   int       `json:"unread_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Message は会話内のメッセージ。
type Message struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// SendMessageRequest はメッセージ送信APIのリクエストボディ。
type SendMessageRequest struct {
	Body string `json:"body"`
}

// CreateChallengeRequest は企業によるチャレンジ作成APIのリクエストボディ。
type CreateChallengeRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration_minutes"`
	Skills          []string `json:"skills,omitempty"`
}

// Challenge はチャレンジ作成APIのレスポンス。
type Challenge struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Dashboard は分析ダッシュボードのレスポンス。
// 指標の中身はユーザー種別ごとに異なり、ゲートウェイは解釈しない。
type Dashboard struct {
	Period  string                     `json:"period"`
	Metrics map[string]json.RawMessage `json:"metrics"`
}
