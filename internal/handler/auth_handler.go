// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kanux/internal/guard"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/session"
)

// AuthService は認証ハンドラーが必要とするサービスインターフェース。
type AuthService interface {
	Authenticate(ctx context.Context, req session.LoginRequest) (*model.Session, error)
	Logout(ctx context.Context, id string) error
	ForceLogout(ctx context.Context, id string)
}

// AuthHandler はログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthService
	*responder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		responder: newResponder(service, cookie),
	}
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	User       model.User `json:"user"`
	RedirectTo string     `json:"redirect_to"`
}

// meResponse は現在のセッション情報のレスポンス。
type meResponse struct {
	IsAuthenticated bool       `json:"is_authenticated"`
	User            model.User `json:"user"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

// Login はメールアドレスとパスワードでログインし、セッションCookieを設定する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません"))
		return
	}

	sess, err := h.service.Authenticate(r.Context(), req)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		h.handleError(w, r, err)
		return
	}

	h.setSessionCookie(w, sess.ID)
	slog.Info("user logged in",
		slog.String("user_id", sess.User.ID),
		slog.String("user_type", string(sess.UserType())),
	)

	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		User:       sess.User,
		RedirectTo: homeRoute(sess.UserType()),
	})
}

// Logout はセッションを破棄してログイン画面へ遷移させる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, guard.LoginRoute, http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	state := middleware.SessionStateFromContext(r.Context())
	if state.Loading {
		middleware.WriteLoadingResponse(w)
		return
	}

	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, meResponse{
		IsAuthenticated: sess.IsAuthenticated,
		User:            sess.User,
		ExpiresAt:       sess.ExpiresAt,
	})
}
