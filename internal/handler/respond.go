package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/guard"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
)

// maxRequestBodySize はリクエストボディの読み取り上限（バイト）。
const maxRequestBodySize = 1 << 20

// SessionTerminator はバックエンドが401を返したときにセッションを破棄する。
// session.Serviceが実装する。
type SessionTerminator interface {
	ForceLogout(ctx context.Context, id string)
}

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // セッションCookieの有効期間（秒）
}

// responder はハンドラー共通のレスポンス処理をまとめる。
type responder struct {
	terminator SessionTerminator
	cookie     CookieConfig
	validate   *validator.Validate
}

func newResponder(terminator SessionTerminator, cookie CookieConfig) *responder {
	return &responder{
		terminator: terminator,
		cookie:     cookie,
		validate:   validator.New(),
	}
}

// decodeJSON はサイズ上限付きでJSONボディをdstに読み込む。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(dst)
}

// decode はJSONボディをdstに読み込み、validateタグで検証する。
// 失敗した場合は400を書き込んでfalseを返す。
func (rs *responder) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません"))
		return false
	}
	if err := rs.validate.Struct(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return false
	}
	return true
}

// handleError はエラーの種類に応じたレスポンスを書き込む。
//   - backend.ErrUnauthorized: 強制ログアウトして /login へ303
//   - *model.APIError: コードに応じたステータス
//   - backend.ErrNotFound: 404
//   - backend.ErrUnavailable: 502（トースト表示用）
//   - その他: 500
func (rs *responder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		rs.forceLogout(w, r)
	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
	case errors.Is(err, backend.ErrNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "指定されたリソースが見つかりません。",
			Category: "backend",
			Action:   "一覧から選び直してください。",
		})
	case errors.Is(err, backend.ErrUnavailable):
		slog.Warn("backend unavailable",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
	default:
		slog.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

// session はガードを通過したセッションを取り出す。
func (rs *responder) session(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return sess, true
}

// forceLogout はセッションを破棄し、Cookieを消してログイン画面へ遷移させる。
// プランスコープの破棄はセッションストアの購読者が行う。
func (rs *responder) forceLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := middleware.SessionFromContext(r.Context()); err == nil && rs.terminator != nil {
		rs.terminator.ForceLogout(r.Context(), sess.ID)
	}
	rs.clearSessionCookie(w)
	http.Redirect(w, r, guard.LoginRoute, http.StatusSeeOther)
}

func (rs *responder) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    id,
		Path:     "/",
		Domain:   rs.cookie.Domain,
		MaxAge:   rs.cookie.MaxAge,
		HttpOnly: true,
		Secure:   rs.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (rs *responder) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   rs.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   rs.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// statusForAPIError はAPIErrorのコードをHTTPステータスに対応付ける。
func statusForAPIError(e *model.APIError) int {
	switch e.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeFeatureLocked:
		return http.StatusPaymentRequired
	case model.ErrCodeSubmissionNotFound, model.ErrCodeConversationMissing:
		return http.StatusNotFound
	case model.ErrCodeSubmissionExpired:
		return http.StatusConflict
	case model.ErrCodeBackendUnavailable, model.ErrCodePlanUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// homeRoute はユーザー種別ごとのトップ画面のパスを返す。
func homeRoute(userType model.UserType) string {
	return "/" + string(userType) + "/dashboard"
}
