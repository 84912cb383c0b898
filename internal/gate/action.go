package gate

import (
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
)

// Outcome はアクションガードの判定結果。
type Outcome int

const (
	// Pending はプランの取得中。アクションは実行も拒否もしない。
	Pending Outcome = iota
	Proceed
	Vetoed
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case Vetoed:
		return "vetoed"
	default:
		return "pending"
	}
}

// ConfirmDialog は拒否されたアクションについての確認ダイアログ。
type ConfirmDialog struct {
	Action      string         `json:"action"`
	Feature     string         `json:"feature"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	UserType    model.UserType `json:"user_type"`
}

// Confirm はアップグレード画面への遷移先を返す。
func (d *ConfirmDialog) Confirm() string {
	return plan.BillingRoute(d.UserType)
}

// Cancel はダイアログを閉じる。副作用はない。
func (d *ConfirmDialog) Cancel() {}

// Interception はアクションガードの評価結果。DialogはVetoedのときのみ設定される。
type Interception struct {
	Outcome Outcome
	Dialog  *ConfirmDialog
}

// Intercept はアクションの実行前に機能フラグを確認する。
// フラグが有効ならそのまま通し、無効ならアクションを止めて確認ダイアログを返す。
func Intercept(snap plan.Snapshot, f plan.Feature, action string) Interception {
	if snap.Loading {
		return Interception{Outcome: Pending}
	}
	if snap.Features().Enabled(f) {
		return Interception{Outcome: Proceed}
	}
	return Interception{
		Outcome: Vetoed,
		Dialog: &ConfirmDialog{
			Action:      action,
			Feature:     f.String(),
			Title:       f.Title(),
			Description: f.Description(),
			UserType:    snap.UserType,
		},
	}
}
