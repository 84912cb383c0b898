package gate

import (
	"testing"

	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
)

func companySnapshot(contact bool) plan.Snapshot {
	v := int64(0)
	if contact {
		v = 1
	}
	return plan.Snapshot{
		UserType: model.UserTypeCompany,
		Plan: &plan.Plan{
			ID:       "p",
			UserType: model.UserTypeCompany,
			Features: plan.NewFeatures(model.UserTypeCompany, map[plan.Feature]int64{plan.CanContactTalent: v}),
		},
	}
}

func TestEvaluate_ContactTalentDisabledShowsUpgradeWall(t *testing.T) {
	r := Evaluate(companySnapshot(false), plan.CanContactTalent)

	if r.Status != Blocked {
		t.Fatalf("Status = %v, want blocked", r.Status)
	}
	if r.Wall == nil {
		t.Fatal("ブロック時はアップグレード案内が必要")
	}
	if r.Wall.Feature != "can_contact_talent" {
		t.Errorf("Feature = %q", r.Wall.Feature)
	}
	if r.Wall.UpgradeURL != "/company/billing" {
		t.Errorf("UpgradeURL = %q, want /company/billing", r.Wall.UpgradeURL)
	}
	if r.Wall.Title == "" || r.Wall.Description == "" {
		t.Error("案内には機能の説明が含まれるべき")
	}
}

func TestEvaluate_ContactTalentEnabledAllows(t *testing.T) {
	r := Evaluate(companySnapshot(true), plan.CanContactTalent)
	if r.Status != Allowed || r.Wall != nil {
		t.Errorf("Result = %+v, want allowed", r)
	}
}

func TestEvaluate_LoadingIsNeutral(t *testing.T) {
	snap := companySnapshot(true)
	snap.Loading = true

	r := Evaluate(snap, plan.CanContactTalent)
	if r.Status != Checking || r.Wall != nil {
		t.Errorf("Loading中は判定を保留するべき: %+v", r)
	}
}

func TestEvaluate_UnknownFeatureIsBlocked(t *testing.T) {
	r := Evaluate(companySnapshot(true), plan.FeatureUnknown)
	if r.Status != Blocked {
		t.Errorf("未知の機能は無効と同じ扱いであるべき: %v", r.Status)
	}
}

func TestEvaluate_NoPlanIsBlocked(t *testing.T) {
	r := Evaluate(plan.Snapshot{UserType: model.UserTypeTalent}, plan.CanMessageCompanies)
	if r.Status != Blocked {
		t.Fatalf("プラン未取得時はブロックするべき: %v", r.Status)
	}
	if r.Wall.UpgradeURL != "/talent/billing" {
		t.Errorf("UpgradeURL = %q", r.Wall.UpgradeURL)
	}
}

func TestEvaluate_OtherUserTypeFeatureIsBlocked(t *testing.T) {
	r := Evaluate(companySnapshot(true), plan.CanMessageCompanies)
	if r.Status != Blocked {
		t.Errorf("別ユーザー種別の機能はブロックされるべき: %v", r.Status)
	}
}
