package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/submission"
)

// ChallengeAPI は企業のチャレンジ作成に必要なバックエンドAPI。
type ChallengeAPI interface {
	CreateChallenge(ctx context.Context, token string, req backend.CreateChallengeRequest) (*backend.Challenge, error)
}

// SubmissionService は受験の開始・再開・提出を扱うサービス。
// submission.Serviceが実装する。
type SubmissionService interface {
	Start(ctx context.Context, sess *model.Session, challengeID string) (*submission.Progress, error)
	Status(ctx context.Context, sess *model.Session) (*submission.Progress, error)
	Submit(ctx context.Context, sess *model.Session, answers json.RawMessage) (*backend.SubmitResponse, error)
	Clear(ctx context.Context, sess *model.Session) error
}

// ChallengeHandler はチャレンジ作成と受験のHTTPハンドラー。
type ChallengeHandler struct {
	api         ChallengeAPI
	submissions SubmissionService
	*responder
}

// NewChallengeHandler はChallengeHandlerを生成する。
func NewChallengeHandler(api ChallengeAPI, submissions SubmissionService, terminator SessionTerminator, cookie CookieConfig) *ChallengeHandler {
	return &ChallengeHandler{
		api:         api,
		submissions: submissions,
		responder:   newResponder(terminator, cookie),
	}
}

// createChallengeRequest はチャレンジ作成リクエストのボディ。
type createChallengeRequest struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=10000"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,min=1,max=480"`
	Skills          []string `json:"skills" validate:"max=20,dive,required,max=50"`
}

// submitRequest は提出リクエストのボディ。
type submitRequest struct {
	Answers json.RawMessage `json:"answers" validate:"required"`
}

// Create は企業ユーザーとしてチャレンジを作成する。
// POST /company/challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req createChallengeRequest
	if !h.decode(w, r, &req) {
		return
	}

	ch, err := h.api.CreateChallenge(r.Context(), sess.Token, backend.CreateChallengeRequest{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Skills:          req.Skills,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, ch)
}

// Start はチャレンジの受験を開始する。期限内の同じチャレンジがあれば再開する。
// 新規開始は201、再開は200を返す。
// POST /talent/challenges/{id}/start
func (h *ChallengeHandler) Start(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	challengeID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(challengeID); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("チャレンジIDの形式が正しくありません"))
		return
	}

	progress, err := h.submissions.Start(r.Context(), sess, challengeID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	status := http.StatusCreated
	if progress.Resumed {
		status = http.StatusOK
	}
	middleware.WriteJSON(w, status, progress)
}

// Status は受験中のエントリと残り時間を返す。
// GET /talent/submission
func (h *ChallengeHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	progress, err := h.submissions.Status(r.Context(), sess)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, progress)
}

// Submit は回答を提出する。
// POST /talent/submission/submit
func (h *ChallengeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.submissions.Submit(r.Context(), sess, req.Answers)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Clear は受験中のエントリを破棄する。
// DELETE /talent/submission
func (h *ChallengeHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := h.submissions.Clear(r.Context(), sess); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
