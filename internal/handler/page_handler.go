package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kanux/internal/guard"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認の上限。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はヘルスチェックでDBの疎通を確認するインターフェース。
// *sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// PageHandler はログイン画面とアクセス拒否画面の記述子、ヘルスチェックを返す。
type PageHandler struct {
	health HealthChecker
}

// NewPageHandler はPageHandlerを生成する。healthがnilの場合はDB確認を省略する。
func NewPageHandler(health HealthChecker) *PageHandler {
	return &PageHandler{health: health}
}

type pageResponse struct {
	Page     string         `json:"page"`
	Required model.UserType `json:"required_user_type,omitempty"`
	Message  string         `json:"message,omitempty"`
	Action   string         `json:"action,omitempty"`
	HomeURL  string         `json:"home_url,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Login はログイン画面の記述子を返す。ログイン済みならホームへ303で遷移させる。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := middleware.SessionStateFromContext(r.Context())
	if state.Loading {
		middleware.WriteLoadingResponse(w)
		return
	}
	if sess, err := middleware.SessionFromContext(r.Context()); err == nil {
		http.Redirect(w, r, homeRoute(sess.UserType()), http.StatusSeeOther)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, pageResponse{Page: "login"})
}

// AccessDenied はユーザー種別が一致しなかった場合の画面記述子を返すハンドラーを生成する。
// requiredは閲覧に必要なユーザー種別。ログイン中であれば自分のホームへの導線を含める。
// GET /{role}/access-denied
func (h *PageHandler) AccessDenied(required model.UserType) http.HandlerFunc {
	apiErr := model.NewAccessDeniedError(required)
	return func(w http.ResponseWriter, r *http.Request) {
		resp := pageResponse{
			Page:     "access-denied",
			Required: required,
			Message:  apiErr.Message,
			Action:   apiErr.Action,
			HomeURL:  guard.LoginRoute,
		}
		if sess, err := middleware.SessionFromContext(r.Context()); err == nil {
			resp.HomeURL = homeRoute(sess.UserType())
		}
		middleware.WriteJSON(w, http.StatusForbidden, resp)
	}
}

// Health はプロセスとDBの稼働状態を返す。
// GET /health
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.health.PingContext(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			middleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
