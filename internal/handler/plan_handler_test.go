package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
)

func TestPlanHandler_GetPlan_ReturnsPlan(t *testing.T) {
	h := NewPlanHandler(model.UserTypeCompany, time.Second, nil, CookieConfig{})
	fetcher := &stubFetcher{plan: planWith(model.UserTypeCompany, map[plan.Feature]int64{
		plan.CanContactTalent: 1,
	})}

	req := withPlan(t, httptest.NewRequest(http.MethodGet, "/company/plan", nil), companySession("user-1"), fetcher)
	w := httptest.NewRecorder()

	h.GetPlan(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Plan struct {
			ID       string         `json:"id"`
			Features map[string]any `json:"features"`
		} `json:"plan"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Plan.ID != "company-plan" {
		t.Errorf("plan.id = %q, want %q", resp.Plan.ID, "company-plan")
	}
	if v, ok := resp.Plan.Features["can_contact_talent"]; !ok || v != true {
		t.Errorf("features[can_contact_talent] = %v, want true", v)
	}
}

func TestPlanHandler_GetPlan_FetchFailure(t *testing.T) {
	h := NewPlanHandler(model.UserTypeTalent, time.Second, nil, CookieConfig{})
	fetcher := &stubFetcher{err: backend.ErrUnavailable}

	req := withPlan(t, httptest.NewRequest(http.MethodGet, "/talent/plan", nil), talentSession("user-2"), fetcher)
	w := httptest.NewRecorder()

	h.GetPlan(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodePlanUnavailable {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodePlanUnavailable)
	}
}

func TestPlanHandler_TokenRejected_ForcesLogout(t *testing.T) {
	auth := &mockAuthService{}
	h := NewPlanHandler(model.UserTypeCompany, time.Second, auth, testCookie)
	fetcher := &stubFetcher{err: fmt.Errorf("fetch plan: %w", backend.ErrUnauthorized)}

	req := withPlan(t, httptest.NewRequest(http.MethodGet, "/company/plan", nil), companySession("user-1"), fetcher)
	w := httptest.NewRecorder()

	h.GetPlan(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
	if len(auth.forced) != 1 || auth.forced[0] != "sess-user-1" {
		t.Errorf("ForceLogout calls = %v, want [sess-user-1]", auth.forced)
	}
}

func TestPlanHandler_OutsideScope_InternalError(t *testing.T) {
	h := NewPlanHandler(model.UserTypeCompany, time.Second, nil, CookieConfig{})

	handlers := map[string]http.HandlerFunc{
		"GetPlan":     h.GetPlan,
		"RefreshPlan": h.RefreshPlan,
		"Billing":     h.Billing,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodGet, "/company/plan", nil), companySession("user-1"))
			w := httptest.NewRecorder()

			fn(w, req)

			if w.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
			}
		})
	}
}

func TestPlanHandler_RefreshPlan_Accepted(t *testing.T) {
	h := NewPlanHandler(model.UserTypeCompany, time.Second, nil, CookieConfig{})
	fetcher := &stubFetcher{plan: planWith(model.UserTypeCompany, nil)}

	req := withPlan(t, httptest.NewRequest(http.MethodPost, "/company/plan/refresh", nil), companySession("user-1"), fetcher)
	w := httptest.NewRecorder()

	h.RefreshPlan(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestPlanHandler_Billing_ListsRoleFeatures(t *testing.T) {
	h := NewPlanHandler(model.UserTypeCompany, time.Second, nil, CookieConfig{})
	fetcher := &stubFetcher{plan: planWith(model.UserTypeCompany, map[plan.Feature]int64{
		plan.CanViewAnalytics:    1,
		plan.MaxActiveChallenges: 5,
	})}

	req := withPlan(t, httptest.NewRequest(http.MethodGet, "/company/billing", nil), companySession("user-1"), fetcher)
	w := httptest.NewRecorder()

	h.Billing(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp billingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Page != "billing" || resp.UserType != model.UserTypeCompany {
		t.Errorf("page = %q, user_type = %q", resp.Page, resp.UserType)
	}

	want := plan.FeaturesFor(model.UserTypeCompany)
	if len(resp.Features) != len(want) {
		t.Fatalf("features = %d, want %d", len(resp.Features), len(want))
	}

	byName := make(map[string]featureStatus)
	for _, f := range resp.Features {
		byName[f.Feature] = f
	}
	if !byName["can_view_analytics"].Enabled {
		t.Error("can_view_analytics should be enabled")
	}
	if byName["can_contact_talent"].Enabled {
		t.Error("can_contact_talent should be disabled")
	}
	limit := byName["max_active_challenges"].Limit
	if limit == nil || *limit != 5 {
		t.Errorf("max_active_challenges limit = %v, want 5", limit)
	}
	for _, f := range resp.Features {
		if f.Feature == "can_message_companies" {
			t.Error("talent features should not appear on company billing page")
		}
	}
}

func TestPlanHandler_Billing_WithoutPlanStillListsFeatures(t *testing.T) {
	h := NewPlanHandler(model.UserTypeTalent, time.Second, nil, CookieConfig{})
	fetcher := &stubFetcher{err: errors.New("backend down")}

	req := withPlan(t, httptest.NewRequest(http.MethodGet, "/talent/billing", nil), talentSession("user-2"), fetcher)
	w := httptest.NewRecorder()

	h.Billing(w, req)

	var resp billingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CurrentPlan != nil {
		t.Error("current_plan should be null when fetch failed")
	}
	if len(resp.Features) != len(plan.FeaturesFor(model.UserTypeTalent)) {
		t.Errorf("features = %d", len(resp.Features))
	}
	for _, f := range resp.Features {
		if f.Enabled {
			t.Errorf("%s should be disabled without a plan", f.Feature)
		}
	}
}

func TestPlanHandler_ConfirmUpgrade_RedirectsToBilling(t *testing.T) {
	h := NewPlanHandler(model.UserTypeTalent, time.Second, nil, CookieConfig{})

	req := httptest.NewRequest(http.MethodPost, "/talent/upgrade/confirm", nil)
	w := httptest.NewRecorder()

	h.ConfirmUpgrade(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != plan.BillingRoute(model.UserTypeTalent) {
		t.Errorf("Location = %q, want %q", loc, plan.BillingRoute(model.UserTypeTalent))
	}
}

func TestPlanHandler_CancelUpgrade_NoContent(t *testing.T) {
	h := NewPlanHandler(model.UserTypeCompany, time.Second, nil, CookieConfig{})

	req := httptest.NewRequest(http.MethodPost, "/company/upgrade/cancel", nil)
	w := httptest.NewRecorder()

	h.CancelUpgrade(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Header().Get("Location") != "" {
		t.Error("cancel should not navigate")
	}
}
