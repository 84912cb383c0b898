package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/kanux/internal/guard"
	"github.com/hitoshi/kanux/internal/model"
)

// GuardRecorder はガード判定のメトリクス記録先。
type GuardRecorder interface {
	RecordGuardDecision(guard, state string)
}

// RequireRole は指定ユーザー種別のセッションのみ通すミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
func RequireRole(role model.UserType, recorder GuardRecorder) func(next http.Handler) http.Handler {
	return requireGuard(guard.RoleRule(role), recorder)
}

// RequireMessagesAccess は認証済みの企業・タレントのみ通すミドルウェアを返す。
func RequireMessagesAccess(recorder GuardRecorder) func(next http.Handler) http.Handler {
	return requireGuard(guard.MessagesRule(), recorder)
}

// requireGuard はリクエストごとにガードを1つ生成し、判定結果に従って遷移する。
//   - Checking: 503 {"status":"loading"}（Retry-After: 1）
//   - Denied: 303 で遷移先へリダイレクト（1リクエストにつき1回）
//   - Authorized: 次のハンドラーへ
func requireGuard(rule guard.Rule, recorder GuardRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := SessionStateFromContext(r.Context())
			g := guard.New(rule)
			d := g.Check(guard.Input{Session: state.Session, Loading: state.Loading})

			if recorder != nil {
				recorder.RecordGuardDecision(rule.Name(), d.State.String())
			}

			switch d.State {
			case guard.Authorized:
				next.ServeHTTP(w, r)
			case guard.Denied:
				slog.Info("route guard denied",
					slog.String("guard", rule.Name()),
					slog.String("path", r.URL.Path),
					slog.String("redirect_to", d.RedirectTo),
				)
				if d.Navigate {
					http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
				}
			default:
				WriteLoadingResponse(w)
			}
		})
	}
}
