// Package gate はプランの機能フラグによる画面ゲートとアクションガードを提供する。
package gate

import (
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
)

// Status はフィーチャーゲートの判定結果。
type Status int

const (
	// Checking はプランの取得中。許可も拒否もまだ表示してはならない。
	Checking Status = iota
	Allowed
	Blocked
)

func (s Status) String() string {
	switch s {
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	default:
		return "checking"
	}
}

// UpgradeWall はブロック時に表示するアップグレード案内。
type UpgradeWall struct {
	Feature     string `json:"feature"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UpgradeURL  string `json:"upgrade_url"`
}

// Result はフィーチャーゲートの評価結果。WallはBlockedのときのみ設定される。
type Result struct {
	Status Status
	Wall   *UpgradeWall
}

// Evaluate はスナップショットの機能フラグから表示可否を判定する。
// 未知の機能と無効な機能は区別しない（どちらもBlocked）。
func Evaluate(snap plan.Snapshot, f plan.Feature) Result {
	if snap.Loading {
		return Result{Status: Checking}
	}
	if snap.Features().Enabled(f) {
		return Result{Status: Allowed}
	}
	return Result{Status: Blocked, Wall: newUpgradeWall(f, snap.UserType)}
}

func newUpgradeWall(f plan.Feature, userType model.UserType) *UpgradeWall {
	w := &UpgradeWall{
		Feature:     f.String(),
		Title:       f.Title(),
		Description: f.Description(),
		UpgradeURL:  plan.BillingRoute(userType),
	}
	if w.Title == "" {
		w.Title = "プランのアップグレードが必要です"
	}
	return w
}
