package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kanux/internal/gate"
	"github.com/hitoshi/kanux/internal/logger"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
)

// ProviderAcquirer はセッションごとのプランスコープを取得するインターフェース。
// plan.Registryが実装する。
type ProviderAcquirer interface {
	Acquire(sessionID, token string, userType model.UserType) *plan.Provider
}

// GateRecorder はフィーチャーゲート判定のメトリクス記録先。
type GateRecorder interface {
	RecordGateDecision(feature, result string)
}

// NewPlanScopeMiddleware は認証済みセッションのプランプロバイダーをコンテキストに注入する。
// ロールガードの後に配置する。
func NewPlanScopeMiddleware(acquirer ProviderAcquirer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := SessionFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			p := acquirer.Acquire(sess.ID, sess.Token, sess.UserType())
			ctx := plan.WithProvider(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Gatekeeper はプランの機能フラグによるゲートとアクションガードのミドルウェアを提供する。
type Gatekeeper struct {
	waitTimeout    time.Duration
	recorder       GateRecorder
	onUnauthorized http.Handler
}

// NewGatekeeper はGatekeeperを生成する。
// waitTimeoutはプラン取得中のリクエストが取得完了を待つ上限。
func NewGatekeeper(waitTimeout time.Duration, recorder GateRecorder) *Gatekeeper {
	return &Gatekeeper{
		waitTimeout: waitTimeout,
		recorder:    recorder,
	}
}

// OnUnauthorized はバックエンドがプラン取得時にトークンを拒否した場合の応答を設定する。
// 未設定の場合は401を返す。
func (g *Gatekeeper) OnUnauthorized(h http.Handler) *Gatekeeper {
	g.onUnauthorized = h
	return g
}

// GateResponseBody はフィーチャーゲートでブロックされた場合のレスポンス。
type GateResponseBody struct {
	Gate    string            `json:"gate"`
	Upgrade *gate.UpgradeWall `json:"upgrade"`
}

// ActionVetoResponseBody はアクションガードで拒否された場合のレスポンス。
type ActionVetoResponseBody struct {
	Outcome    string              `json:"outcome"`
	Dialog     *gate.ConfirmDialog `json:"dialog"`
	ConfirmURL string              `json:"confirm_url"`
}

// RequireFeature は機能フラグが有効な場合のみ通すミドルウェアを返す。
//   - Checking: 503 {"status":"loading"}
//   - Blocked: 403 {"gate":"blocked","upgrade":{...}}
//   - Allowed: 次のハンドラーへ
func (g *Gatekeeper) RequireFeature(f plan.Feature) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, ok := g.snapshot(w, r)
			if !ok {
				return
			}

			res := gate.Evaluate(snap, f)
			g.record(f, res.Status.String())

			switch res.Status {
			case gate.Allowed:
				next.ServeHTTP(w, r)
			case gate.Blocked:
				WriteJSON(w, http.StatusForbidden, GateResponseBody{
					Gate:    res.Status.String(),
					Upgrade: res.Wall,
				})
			default:
				WriteLoadingResponse(w)
			}
		})
	}
}

// GuardAction はアクションのハンドラーより先に機能フラグを確認するミドルウェアを返す。
// 拒否された場合は402で確認ダイアログを返し、ハンドラーは実行しない。
func (g *Gatekeeper) GuardAction(f plan.Feature, action string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, ok := g.snapshot(w, r)
			if !ok {
				return
			}

			ic := gate.Intercept(snap, f, action)
			g.record(f, ic.Outcome.String())

			switch ic.Outcome {
			case gate.Proceed:
				next.ServeHTTP(w, r)
			case gate.Vetoed:
				slog.Info("action vetoed by plan",
					slog.String("action", action),
					slog.String("feature", f.String()),
				)
				WriteJSON(w, http.StatusPaymentRequired, ActionVetoResponseBody{
					Outcome:    ic.Outcome.String(),
					Dialog:     ic.Dialog,
					ConfirmURL: ic.Dialog.Confirm(),
				})
			default:
				WriteLoadingResponse(w)
			}
		})
	}
}

// snapshot はコンテキストのプロバイダーから、取得完了をwaitTimeoutまで待ったスナップショットを返す。
// プランスコープの外で呼ばれた場合は構成ミスとして500を返す。
// トークンが拒否されていた場合はゲート判定をせず強制ログアウトさせる。
func (g *Gatekeeper) snapshot(w http.ResponseWriter, r *http.Request) (plan.Snapshot, bool) {
	p, err := plan.FromContext(r.Context())
	if err != nil {
		slog.Error("feature gate used outside of plan scope",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return plan.Snapshot{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.waitTimeout)
	defer cancel()
	snap := p.Wait(ctx)
	if snap.Unauthorized() {
		slog.Warn("plan fetch rejected by backend",
			slog.String("path", r.URL.Path),
			slog.String("request_id", logger.RequestIDFromContext(r.Context())),
		)
		if g.onUnauthorized != nil {
			g.onUnauthorized.ServeHTTP(w, r)
		} else {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		}
		return plan.Snapshot{}, false
	}
	return snap, true
}

func (g *Gatekeeper) record(f plan.Feature, result string) {
	if g.recorder != nil {
		g.recorder.RecordGateDecision(f.String(), result)
	}
}
