package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kanux/internal/logger"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダー。
// フロントエンドが付与した値が有効なUUIDであれば引き継ぎ、なければ生成する。
const RequestIDHeader = "X-Request-ID"

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestInfo は後続のミドルウェアがログ用に書き込むリクエスト情報。
type requestInfo struct {
	userID string
}

// requestID はヘッダーのリクエストIDを検証し、無効または未指定なら新規に生成する。
func requestID(r *http.Request) string {
	if v := r.Header.Get(RequestIDHeader); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

// levelForStatus はステータスコードに応じたログレベルを返す。
// ガードの303やゲートの402/403は想定内の分岐なのでInfo/Warnに留める。
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLoggingMiddleware はリクエストごとにリクエストIDを割り当て、
// 完了時にhttp_requestログを1行出力するミドルウェアを返す。
// ログにはrequest_id、method、path、status、duration_ms、user_id（認証済みの場合）を含む。
func NewLoggingMiddleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			info := &requestInfo{}

			ctx := context.WithValue(logger.WithRequestID(r.Context(), id), requestInfoContextKey, info)
			next.ServeHTTP(rec, r.WithContext(ctx))

			args := []any{
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/float64(time.Millisecond)),
			}
			// セッションミドルウェアがユーザーIDを書き込んだ場合のみ
			if info.userID != "" {
				args = append(args, slog.String("user_id", info.userID))
			}

			log.Log(ctx, levelForStatus(rec.statusCode), "http_request", args...)
		})
	}
}
