// Package logger はJSON構造化ログの初期化を提供する。
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// serviceName はすべてのログ行に付与するサービス名。
const serviceName = "kanux-gateway"

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With(slog.String("service", serviceName))
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// Component はグローバルロガーにcomponent属性を付けたロガーを返す。
// バックエンドクライアントやワーカーなど、長寿命のコンポーネントに渡す。
func Component(name string) *slog.Logger {
	return slog.Default().With(slog.String("component", name))
}

type requestIDKey struct{}

// WithRequestID はリクエストIDをコンテキストに格納する。
// 同じIDがアクセスログとバックエンドへのX-Request-IDに使われる。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext はコンテキストのリクエストIDを返す。未設定の場合は空文字列。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
