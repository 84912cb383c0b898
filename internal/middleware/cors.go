package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORSMiddleware はフロントエンドのオリジンにだけcredentials付きのアクセスを許可する。
// Originが一致しないリクエストにはCORSヘッダーを付けず、ブラウザに拒否させる。
// プリフライトには204で応答し、後続のハンドラーには渡さない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	handler := cors.Handler(cors.Options{
		AllowedOrigins: []string{allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", csrfHeaderName, RequestIDHeader},
		// フロントエンドは503/429のRetry-Afterを読んで再試行する
		ExposedHeaders:     []string{"Retry-After", RequestIDHeader},
		AllowCredentials:   true,
		MaxAge:             600,
		OptionsPassthrough: true,
	})

	return func(next http.Handler) http.Handler {
		return handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPreflight(r) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// isPreflight はCORSのプリフライトリクエストかどうかを判定する。
func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}
