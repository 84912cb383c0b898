// Package guard はセッション状態に基づくルートガードを状態機械として提供する。
// ガードは判定結果を値として返すのみで、画面遷移は呼び出し側が行う。
package guard

import (
	"sync"

	"github.com/hitoshi/kanux/internal/model"
)

// LoginRoute は未認証時の遷移先。
const LoginRoute = "/login"

// AccessDeniedRoute はユーザー種別が一致しない場合の遷移先を返す。
// 遷移先は要求されたロール側のページになる。
func AccessDeniedRoute(required model.UserType) string {
	return "/" + string(required) + "/access-denied"
}

// State はガードの状態。Unknown → Checking → {Authorized, Denied} の順に進む。
type State int

const (
	Unknown State = iota
	Checking
	Authorized
	Denied
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Input はガードの判定材料。
type Input struct {
	Session *model.Session
	Loading bool
}

// Decision はガードの判定結果。
// Navigate はこの判定で遷移を開始すべき場合のみtrueになり、1つのガードにつき最大1回しか立たない。
type Decision struct {
	State      State
	RedirectTo string
	Navigate   bool
}

// Rule はガードの種類ごとの認可条件。
type Rule struct {
	name     string
	required model.UserType
}

// RoleRule は指定ユーザー種別のみ通すルールを返す。
func RoleRule(role model.UserType) Rule {
	return Rule{name: "role:" + string(role), required: role}
}

// MessagesRule は認証済みの企業・タレントいずれも通すルールを返す。
func MessagesRule() Rule {
	return Rule{name: "messages"}
}

// Name はメトリクス・ログ用のルール名を返す。
func (r Rule) Name() string {
	return r.name
}

// Evaluate は入力とルールから判定結果を返す純粋関数。
func Evaluate(in Input, rule Rule) Decision {
	if in.Loading {
		return Decision{State: Checking}
	}
	if in.Session == nil || !in.Session.IsAuthenticated {
		return Decision{State: Denied, RedirectTo: LoginRoute}
	}

	userType := in.Session.UserType()
	if rule.required != "" {
		if userType != rule.required {
			return Decision{State: Denied, RedirectTo: AccessDeniedRoute(rule.required)}
		}
		return Decision{State: Authorized}
	}

	if userType != model.UserTypeCompany && userType != model.UserTypeTalent {
		return Decision{State: Denied, RedirectTo: LoginRoute}
	}
	return Decision{State: Authorized}
}

// Guard は1つのガードインスタンス。一度Deniedになると同じインスタンス内では他の状態に戻らない。
type Guard struct {
	rule Rule

	mu       sync.Mutex
	decision Decision
}

// New はUnknown状態のガードを生成する。
func New(rule Rule) *Guard {
	return &Guard{rule: rule}
}

// Rule はガードのルールを返す。
func (g *Guard) Rule() Rule {
	return g.rule
}

// State は現在の状態を返す。
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision.State
}

// Check は入力を評価して状態を進める。
// Deniedに入った最初の呼び出しだけがNavigateをtrueで返す。
func (g *Guard) Check(in Input) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decision.State == Denied {
		d := g.decision
		d.Navigate = false
		return d
	}

	d := Evaluate(in, g.rule)
	if d.State == Denied {
		d.Navigate = true
	}
	g.decision = d
	return d
}
