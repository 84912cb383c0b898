// Package backend はKánuxバックエンドREST APIのクライアントを提供する。
// ゲートウェイはバックエンドを不透明な外部サービスとして扱い、
// JSONの送受信とステータスコードの分類のみを行う。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kanux/internal/logger"
	"github.com/hitoshi/kanux/internal/model"
)

// maxResponseSize はレスポンスボディの読み取り上限（バイト）。
const maxResponseSize = 2 << 20

// Recorder はバックエンド呼び出しのメトリクス記録先。
type Recorder interface {
	RecordBackendRequest(endpoint string, statusCode int, duration time.Duration)
}

// Client はKánuxバックエンドAPIのクライアント。
// すべてのリクエストにセッション由来のBearerトークンを付与する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	recorder   Recorder
	retry      retryPolicy
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLの末尾のスラッシュは取り除かれる。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      defaultRetryPolicy,
	}
}

// WithRecorder はメトリクス記録先を設定したClientを返す。
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// Login はメールアドレスとパスワードでバックエンドにログインする。
// 認証失敗時はErrUnauthorizedを返す。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", "login", body, &resp); err != nil {
		return nil, err
	}
	if err := resp.User.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid user in login response: %v", ErrUnavailable, err)
	}
	return &resp, nil
}

// GetPlan は現在のユーザーのプランと機能フラグを取得する。
// ユーザー種別ごとにエンドポイントが異なる。
func (c *Client) GetPlan(ctx context.Context, token string, userType model.UserType) (*PlanResponse, error) {
	var path string
	switch userType {
	case model.UserTypeCompany:
		path = "/companies/me/subscription"
	case model.UserTypeTalent:
		path = "/talents/me/subscription"
	default:
		return nil, fmt.Errorf("unsupported user type for plan: %q", userType)
	}

	var resp PlanResponse
	if err := c.do(ctx, http.MethodGet, path, token, "plan", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartChallenge はチャレンジの受験を開始する。
func (c *Client) StartChallenge(ctx context.Context, token, challengeID string) (*StartChallengeResponse, error) {
	path := "/challenges/" + url.PathEscape(challengeID) + "/start"
	var resp StartChallengeResponse
	if err := c.do(ctx, http.MethodPost, path, token, "challenge_start", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit は受験の回答を提出する。
func (c *Client) Submit(ctx context.Context, token, submissionID string, req SubmitRequest) (*SubmitResponse, error) {
	path := "/submissions/" + url.PathEscape(submissionID) + "/submit"
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, path, token, "submission_submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateChallenge は企業ユーザーとしてチャレンジを作成する。
func (c *Client) CreateChallenge(ctx context.Context, token string, req CreateChallengeRequest) (*Challenge, error) {
	var resp Challenge
	if err := c.do(ctx, http.MethodPost, "/challenges", token, "challenge_create", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListConversations は会話一覧を取得する。
func (c *Client) ListConversations(ctx context.Context, token string) ([]Conversation, error) {
	var resp []Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", token, "conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListMessages は会話内のメッセージ一覧を取得する。
func (c *Client) ListMessages(ctx context.Context, token, conversationID string) ([]Message, error) {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	var resp []Message
	if err := c.do(ctx, http.MethodGet, path, token, "messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SendMessage は会話にメッセージを送信する。
func (c *Client) SendMessage(ctx context.Context, token, conversationID, body string) (*Message, error) {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	var resp Message
	if err := c.do(ctx, http.MethodPost, path, token, "message_send", SendMessageRequest{Body: body}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDashboard はユーザー種別ごとの分析ダッシュボードを取得する。
func (c *Client) GetDashboard(ctx context.Context, token string, userType model.UserType) (*Dashboard, error) {
	path := "/analytics/" + url.PathEscape(string(userType)) + "/dashboard"
	var resp Dashboard
	if err := c.do(ctx, http.MethodGet, path, token, "dashboard", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do はJSONリクエストを送信し、レスポンスをoutにデコードする。
// ステータスコードは 401→ErrUnauthorized、404→ErrNotFound、その他の非2xx→ErrUnavailable に分類する。
// GETは通信失敗と一時的なエラーステータスの場合に限り再試行する。
func (c *Client) do(ctx context.Context, method, path, token, endpoint string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = b
	}

	attempts := c.retry.attemptsFor(method)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, c.retry.backoff(attempt-1)); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			c.logger.Info("retrying backend request",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
			)
		}

		retry, err := c.send(ctx, method, path, token, endpoint, payload, out)
		if err == nil || !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// send は1回分のリクエストを送信する。retryは再試行してよい失敗かどうかを示す。
func (c *Client) send(ctx context.Context, method, path, token, endpoint string, payload []byte, out any) (retry bool, err error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Kanux-Gateway/1.0")
	req.Header.Set("X-Request-ID", requestID(ctx))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(endpoint, 0, time.Since(start))
		c.logger.Error("backend request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return ctx.Err() == nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	c.record(endpoint, resp.StatusCode, time.Since(start))

	class := classifyStatus(resp.StatusCode)
	switch class {
	case statusUnauthorized:
		return false, ErrUnauthorized
	case statusNotFound:
		return false, ErrNotFound
	case statusRetryable, statusFailed:
		c.logger.Warn("backend returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return class == statusRetryable, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("failed to decode backend response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}
	return false, nil
}

// requestID は受信リクエストのIDを引き継ぐ。ワーカーなどリクエスト外の呼び出しでは新規に生成する。
func requestID(ctx context.Context) string {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func (c *Client) record(endpoint string, statusCode int, d time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordBackendRequest(endpoint, statusCode, d)
	}
}
