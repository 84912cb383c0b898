package middleware

import "net/http"

// securityHeaders はすべてのレスポンスに付与するヘッダー。
// ゲートウェイはJSONとリダイレクトしか返さないため、CSPはすべてのリソース読み込みを拒否する。
// ガードやゲートの判定結果はセッションごとに異なるので、キャッシュも禁止する。
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Cache-Control", "no-store"},
}

// NewSecurityHeadersMiddleware はsecurityHeadersを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
