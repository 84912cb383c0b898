package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired はバックエンドが発行したJWTのexpが過ぎているかを返す。
// 署名の検証はバックエンドの責務のため行わない。
// JWTとして解釈できないトークンやexpを持たないトークンは期限切れとみなさない。
func tokenExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
