// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/session"
)

// SessionCookieName はゲートウェイのセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// ErrNoSession はコンテキストに認証済みセッションが無いことを表す。
var ErrNoSession = errors.New("authenticated session not found in context")

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionStateContextKey = contextKey("session_state")
	requestInfoContextKey  = contextKey("request_info")
)

// SessionLoader はセッションの読み出しに必要なインターフェース。
type SessionLoader interface {
	Load(ctx context.Context, id string) session.State
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み出し、
// その状態をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは拒否しない。判定はガードが行う。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var state session.State
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				state = loader.Load(r.Context(), cookie.Value)
			}

			if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok && state.Session != nil {
				info.userID = state.Session.User.ID
			}

			ctx := ContextWithSessionState(r.Context(), state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithSessionState はコンテキストにセッション状態を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionState(ctx context.Context, state session.State) context.Context {
	return context.WithValue(ctx, sessionStateContextKey, state)
}

// SessionStateFromContext はリクエストコンテキストからセッション状態を取得する。
// セッションミドルウェアを通過していない場合はゼロ値（未認証）を返す。
func SessionStateFromContext(ctx context.Context) session.State {
	state, _ := ctx.Value(sessionStateContextKey).(session.State)
	return state
}

// SessionFromContext は認証済みセッションを取得する。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	state := SessionStateFromContext(ctx)
	if state.Session == nil || !state.Session.IsAuthenticated {
		return nil, ErrNoSession
	}
	return state.Session, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	sess, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	if sess.User.ID == "" {
		return "", ErrNoSession
	}
	return sess.User.ID, nil
}
