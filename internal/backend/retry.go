package backend

import (
	"context"
	"net/http"
	"time"
)

// statusClass はバックエンドのHTTPステータスコードの分類。
type statusClass int

const (
	// statusOK は2xx。
	statusOK statusClass = iota
	// statusUnauthorized は401。強制ログアウトの契機になる。
	statusUnauthorized
	// statusNotFound は404。
	statusNotFound
	// statusRetryable は一時的な失敗（429/502/503/504）。
	statusRetryable
	// statusFailed はその他の非2xx。
	statusFailed
)

// classifyStatus はHTTPステータスコードを分類する。
func classifyStatus(statusCode int) statusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return statusOK
	case statusCode == http.StatusUnauthorized:
		return statusUnauthorized
	case statusCode == http.StatusNotFound:
		return statusNotFound
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusBadGateway,
		statusCode == http.StatusServiceUnavailable,
		statusCode == http.StatusGatewayTimeout:
		return statusRetryable
	default:
		return statusFailed
	}
}

// retryPolicy は冪等なリクエスト（GET）の再試行設定。
// 状態を変更するリクエストは二重実行を避けるため再試行しない。
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// defaultRetryPolicy は初回100ms、2倍ずつ増加、最大1秒、合計3回まで。
var defaultRetryPolicy = retryPolicy{
	maxAttempts:    3,
	initialBackoff: 100 * time.Millisecond,
	maxBackoff:     time.Second,
}

// attemptsFor はメソッドに応じた最大試行回数を返す。
func (p retryPolicy) attemptsFor(method string) int {
	if method != http.MethodGet || p.maxAttempts < 1 {
		return 1
	}
	return p.maxAttempts
}

// backoff は失敗済み回数に基づいて指数バックオフ遅延を計算する。
func (p retryPolicy) backoff(failures int) time.Duration {
	delay := p.initialBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay > p.maxBackoff {
			return p.maxBackoff
		}
	}
	return delay
}

// sleepContext はdだけ待機する。ctxが先に終了した場合はそのエラーを返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
