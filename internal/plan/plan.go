package plan

import "github.com/hitoshi/kanux/internal/model"

// Plan は現在のアイデンティティに適用されているサブスクリプションプラン。
// 永続化はせず、スコープごとにバックエンドから取得し直す。
type Plan struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	UserType model.UserType `json:"user_type"`
	Features Features       `json:"features"`
}

// BillingRoute はユーザー種別ごとの請求・アップグレード画面のパスを返す。
func BillingRoute(userType model.UserType) string {
	return "/" + string(userType) + "/billing"
}
