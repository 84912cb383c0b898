package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
)

// DashboardAPI は分析ダッシュボードのバックエンドAPI。
type DashboardAPI interface {
	GetDashboard(ctx context.Context, token string, userType model.UserType) (*backend.Dashboard, error)
}

// DashboardHandler は分析ダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	api DashboardAPI
	*responder
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(api DashboardAPI, terminator SessionTerminator, cookie CookieConfig) *DashboardHandler {
	return &DashboardHandler{api: api, responder: newResponder(terminator, cookie)}
}

// Get はユーザー種別ごとのダッシュボードを返す。
// GET /{role}/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	d, err := h.api.GetDashboard(r.Context(), sess.Token, sess.UserType())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, d)
}
