// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizer はバックエンドから受け取った会話メッセージを
// クライアントへ返す前にサニタイズする。メッセージ本文は他のユーザーが書いたものであり、
// そのまま埋め込むとXSSの経路になる。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizer はメッセージのサニタイズ機能のインターフェース。
type MessageSanitizer interface {
	// SanitizeBody はメッセージ本文をサニタイズする。
	// 許可タグ（p, br, strong, em, code, a）のみを通過させる。
	// aタグのhrefはhttpsのみ許可し、target="_blank"とrel="noopener noreferrer"を付与する。
	SanitizeBody(raw string) string
	// SanitizePlain はタグをすべて除去したテキストを返す。
	// 会話一覧のプレビューや相手の表示名に使う。
	SanitizePlain(raw string) string
}

// messageSanitizer はMessageSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type messageSanitizer struct {
	body  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerを生成する。
func NewMessageSanitizer() *messageSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "strong", "em", "code")

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &messageSanitizer{
		body:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// SanitizeBody はメッセージ本文をサニタイズする。
func (s *messageSanitizer) SanitizeBody(raw string) string {
	return s.body.Sanitize(raw)
}

// SanitizePlain はタグを除去し、前後の空白を取り除いたテキストを返す。
func (s *messageSanitizer) SanitizePlain(raw string) string {
	return strings.TrimSpace(s.plain.Sanitize(raw))
}
