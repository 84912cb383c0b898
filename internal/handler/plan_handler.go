package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kanux/internal/gate"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
)

// PlanHandler はプラン参照・再取得・アップグレード導線のHTTPハンドラー。
// ロールガードとプランスコープの内側に配置する。
type PlanHandler struct {
	role        model.UserType
	waitTimeout time.Duration
	*responder
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(role model.UserType, waitTimeout time.Duration, terminator SessionTerminator, cookie CookieConfig) *PlanHandler {
	return &PlanHandler{role: role, waitTimeout: waitTimeout, responder: newResponder(terminator, cookie)}
}

type planResponse struct {
	Plan *plan.Plan `json:"plan"`
}

type featureStatus struct {
	Feature     string `json:"feature"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Limit       *int64 `json:"limit,omitempty"`
}

type billingResponse struct {
	Page        string          `json:"page"`
	UserType    model.UserType  `json:"user_type"`
	CurrentPlan *plan.Plan      `json:"current_plan"`
	Features    []featureStatus `json:"features"`
}

// GetPlan は現在のプランを返す。取得中は503、取得失敗時は502を返す。
// バックエンドがトークンを拒否していた場合は強制ログアウトする。
// GET /{role}/plan
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if snap.Loading {
		middleware.WriteLoadingResponse(w)
		return
	}
	if snap.Plan == nil {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewPlanUnavailableError())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, planResponse{Plan: snap.Plan})
}

// RefreshPlan はプランの再取得を開始する。何度呼んでもよい。
// POST /{role}/plan/refresh
func (h *PlanHandler) RefreshPlan(w http.ResponseWriter, r *http.Request) {
	p, err := plan.FromContext(r.Context())
	if err != nil {
		logMissingScope(r, err)
		middleware.WriteInternalServerError(w)
		return
	}
	p.Refresh()
	middleware.WriteJSON(w, http.StatusAccepted, middleware.LoadingResponseBody{Status: "refreshing"})
}

// Billing は請求・アップグレード画面の記述子を返す。プランが未取得でも機能一覧は返す。
// GET /{role}/billing
func (h *PlanHandler) Billing(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	fs := snap.Features()
	features := make([]featureStatus, 0)
	for _, f := range plan.FeaturesFor(h.role) {
		st := featureStatus{
			Feature:     f.String(),
			Title:       f.Title(),
			Description: f.Description(),
			Enabled:     fs.Enabled(f),
		}
		if v, ok := fs.Limit(f); ok {
			st.Limit = &v
		}
		features = append(features, st)
	}

	middleware.WriteJSON(w, http.StatusOK, billingResponse{
		Page:        "billing",
		UserType:    h.role,
		CurrentPlan: snap.Plan,
		Features:    features,
	})
}

// ConfirmUpgrade は確認ダイアログの「アップグレード」を処理し、請求画面へ遷移させる。
// POST /{role}/upgrade/confirm
func (h *PlanHandler) ConfirmUpgrade(w http.ResponseWriter, r *http.Request) {
	dialog := gate.ConfirmDialog{UserType: h.role}
	http.Redirect(w, r, dialog.Confirm(), http.StatusSeeOther)
}

// CancelUpgrade は確認ダイアログを閉じる。副作用はない。
// POST /{role}/upgrade/cancel
func (h *PlanHandler) CancelUpgrade(w http.ResponseWriter, r *http.Request) {
	dialog := gate.ConfirmDialog{UserType: h.role}
	dialog.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlanHandler) snapshot(w http.ResponseWriter, r *http.Request) (plan.Snapshot, bool) {
	p, err := plan.FromContext(r.Context())
	if err != nil {
		logMissingScope(r, err)
		middleware.WriteInternalServerError(w)
		return plan.Snapshot{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()
	snap := p.Wait(ctx)
	if snap.Unauthorized() {
		h.forceLogout(w, r)
		return plan.Snapshot{}, false
	}
	return snap, true
}

func logMissingScope(r *http.Request, err error) {
	slog.Error("plan provider used outside of plan scope",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
