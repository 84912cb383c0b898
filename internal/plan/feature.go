// Package plan はサブスクリプションプランと機能フラグ、
// およびアイデンティティごとにスコープされたプランプロバイダーを提供する。
package plan

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hitoshi/kanux/internal/model"
)

// Feature は既知の機能フラグの閉じた集合。
// 文字列キーでの参照はParseFeatureを経由させ、綴り間違いを起動時に検出する。
type Feature int

const (
	FeatureUnknown Feature = iota

	// 企業向け
	CanContactTalent
	CanViewAnalytics
	CanCreateChallenges
	CanExportReports
	MaxActiveChallenges

	// タレント向け
	CanMessageCompanies
	CanViewProfileInsights
	CanAccessPremiumChallenges
	MaxMonthlySubmissions
)

type featureKind int

const (
	kindFlag featureKind = iota
	kindLimit
)

type featureDef struct {
	name        string
	userType    model.UserType
	kind        featureKind
	title       string
	description string
}

var featureDefs = map[Feature]featureDef{
	CanContactTalent: {
		name: "can_contact_talent", userType: model.UserTypeCompany, kind: kindFlag,
		title:       "タレントへのメッセージ",
		description: "候補者に直接メッセージを送り、会話を管理できます。",
	},
	CanViewAnalytics: {
		name: "can_view_analytics", userType: model.UserTypeCompany, kind: kindFlag,
		title:       "採用分析ダッシュボード",
		description: "チャレンジの応募状況やスコア分布を分析できます。",
	},
	CanCreateChallenges: {
		name: "can_create_challenges", userType: model.UserTypeCompany, kind: kindFlag,
		title:       "チャレンジの作成",
		description: "独自のスキルチャレンジを作成して公開できます。",
	},
	CanExportReports: {
		name: "can_export_reports", userType: model.UserTypeCompany, kind: kindFlag,
		title:       "レポートのエクスポート",
		description: "候補者の評価レポートをダウンロードできます。",
	},
	MaxActiveChallenges: {
		name: "max_active_challenges", userType: model.UserTypeCompany, kind: kindLimit,
		title:       "公開中チャレンジ数",
		description: "同時に公開できるチャレンジの上限です。",
	},
	CanMessageCompanies: {
		name: "can_message_companies", userType: model.UserTypeTalent, kind: kindFlag,
		title:       "企業へのメッセージ",
		description: "興味のある企業に自分からメッセージを送れます。",
	},
	CanViewProfileInsights: {
		name: "can_view_profile_insights", userType: model.UserTypeTalent, kind: kindFlag,
		title:       "プロフィールインサイト",
		description: "プロフィールの閲覧数やチャレンジ成績の推移を確認できます。",
	},
	CanAccessPremiumChallenges: {
		name: "can_access_premium_challenges", userType: model.UserTypeTalent, kind: kindFlag,
		title:       "プレミアムチャレンジ",
		description: "企業が限定公開するプレミアムチャレンジに挑戦できます。",
	},
	MaxMonthlySubmissions: {
		name: "max_monthly_submissions", userType: model.UserTypeTalent, kind: kindLimit,
		title:       "月間提出数",
		description: "1か月に提出できるチャレンジの上限です。",
	},
}

var featuresByName = func() map[string]Feature {
	m := make(map[string]Feature, len(featureDefs))
	for f, def := range featureDefs {
		m[def.name] = f
	}
	return m
}()

// ParseFeature は機能名をFeatureに変換する。未知の名前はエラーを返す。
func ParseFeature(name string) (Feature, error) {
	f, ok := featuresByName[name]
	if !ok {
		return FeatureUnknown, fmt.Errorf("unknown feature: %q", name)
	}
	return f, nil
}

// MustParseFeature はParseFeatureの失敗時にpanicする。ルーティング定義など起動時の配線用。
func MustParseFeature(name string) Feature {
	f, err := ParseFeature(name)
	if err != nil {
		panic(err)
	}
	return f
}

// FeaturesFor はユーザー種別に属する機能を定義順に返す。
func FeaturesFor(userType model.UserType) []Feature {
	var out []Feature
	for f := CanContactTalent; f <= MaxMonthlySubmissions; f++ {
		if featureDefs[f].userType == userType {
			out = append(out, f)
		}
	}
	return out
}

// String は機能名（バックエンドのキー）を返す。
func (f Feature) String() string {
	if def, ok := featureDefs[f]; ok {
		return def.name
	}
	return "unknown(" + strconv.Itoa(int(f)) + ")"
}

// UserType は機能が属するユーザー種別を返す。
func (f Feature) UserType() model.UserType {
	return featureDefs[f].userType
}

// Title は画面表示用の機能名を返す。
func (f Feature) Title() string {
	return featureDefs[f].title
}

// Description は機能の説明文を返す。
func (f Feature) Description() string {
	return featureDefs[f].description
}

// IsLimit は数値上限型の機能かどうかを返す。
func (f Feature) IsLimit() bool {
	def, ok := featureDefs[f]
	return ok && def.kind == kindLimit
}

// Features はプランに含まれる機能フラグの集合。
// ゼロ値はすべての機能が無効な状態として扱われる。
type Features struct {
	userType model.UserType
	values   map[Feature]int64
}

// NewFeatures はユーザー種別と値から機能フラグの集合を生成する。
// 別のユーザー種別に属する機能は無視される。
func NewFeatures(userType model.UserType, values map[Feature]int64) Features {
	fs := Features{userType: userType, values: make(map[Feature]int64, len(values))}
	for f, v := range values {
		if f.UserType() != userType {
			continue
		}
		fs.values[f] = v
	}
	return fs
}

// Enabled は機能が有効かどうかを返す。全域関数であり、
// 未設定・false・0・別ユーザー種別の機能はすべてfalseになる。
// 上限型の負の値は無制限として有効とみなす。
func (fs Features) Enabled(f Feature) bool {
	if f.UserType() == "" || f.UserType() != fs.userType {
		return false
	}
	v := fs.values[f]
	if f.IsLimit() && v < 0 {
		return true
	}
	return v > 0
}

// Limit は上限型機能の値を返す。未設定の場合は0とfalseを返す。
// 負の値は無制限を表す。
func (fs Features) Limit(f Feature) (int64, bool) {
	if !f.IsLimit() || f.UserType() != fs.userType {
		return 0, false
	}
	v, ok := fs.values[f]
	return v, ok
}

// MarshalJSON は機能名をキーにしたオブジェクトとして書き出す。
// フラグ型はbool、上限型は数値で表現する。
func (fs Features) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(fs.values))
	for f, v := range fs.values {
		if f.IsLimit() {
			out[f.String()] = v
		} else {
			out[f.String()] = v > 0
		}
	}
	return json.Marshal(out)
}

// ParseFeatures はバックエンドの機能フラグを解釈する。
// 値はboolまたは数値を受け付ける。未知の機能名、別ユーザー種別の機能、
// 解釈できない値はログに残して捨てる。
func ParseFeatures(userType model.UserType, raw map[string]json.RawMessage, logger *slog.Logger) Features {
	values := make(map[Feature]int64, len(raw))
	for name, v := range raw {
		f, err := ParseFeature(name)
		if err != nil {
			logger.Warn("ignoring unknown feature flag",
				slog.String("feature", name),
				slog.String("user_type", string(userType)),
			)
			continue
		}
		if f.UserType() != userType {
			continue
		}

		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			if b {
				values[f] = 1
			} else {
				values[f] = 0
			}
			continue
		}
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			values[f] = int64(n)
			continue
		}

		logger.Warn("ignoring feature flag with unsupported value",
			slog.String("feature", name),
			slog.String("value", string(v)),
		)
	}
	return NewFeatures(userType, values)
}
