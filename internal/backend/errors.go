package backend

import "errors"

var (
	// ErrUnauthorized はバックエンドが401を返したことを示す。強制ログアウトの契機になる。
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrNotFound はバックエンドが404を返したことを示す。
	ErrNotFound = errors.New("backend: not found")
	// ErrUnavailable は通信失敗または想定外のステータスを示す。
	ErrUnavailable = errors.New("backend: unavailable")
)
