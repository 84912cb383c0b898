package plan

import (
	"context"
	"errors"
)

// ErrNoProvider はプランプロバイダーのスコープ外で参照されたことを示す。
// ルーティングの配線ミスであり、黙って無視してはならない。
var ErrNoProvider = errors.New("plan provider is not available outside of a provider scope")

type contextKey struct{}

// WithProvider はコンテキストにプロバイダーを注入する。
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext はコンテキストからプロバイダーを取得する。
// スコープ外の場合はErrNoProviderを返す。
func FromContext(ctx context.Context) (*Provider, error) {
	p, ok := ctx.Value(contextKey{}).(*Provider)
	if !ok || p == nil {
		return nil, ErrNoProvider
	}
	return p, nil
}
