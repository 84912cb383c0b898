// Package repository はデータ永続化のインターフェースを定義する。
// 各スロットは生のバイト列を保持し、デコードと破損データの扱いは呼び出し側が行う。
package repository

import (
	"context"
	"time"
)

// SessionRecord は永続化されたログインセッションの1行。
// Data はエンコード済みのセッション（JSON）。
type SessionRecord struct {
	ID        string
	UserID    string
	Data      []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionRepository はセッションスロットの永続化インターフェース。
type SessionRepository interface {
	// Save はセッションを保存する。同じIDが存在する場合は上書きする。
	Save(ctx context.Context, record *SessionRecord) error
	// FindByID は指定IDのセッションを取得する。存在しない、または期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*SessionRecord, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合も成功とする。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// SubmissionRecord はユーザーごとの受験状態スロットの1行。
// Data はバージョン付きエンベロープ（JSON）。
type SubmissionRecord struct {
	UserID    string
	Data      []byte
	Version   int
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// SubmissionRepository は受験状態スロットの永続化インターフェース。
// 1ユーザーにつき1スロットで、書き込みは常に上書きになる。
type SubmissionRepository interface {
	// Save はユーザーのスロットを上書き保存する。
	Save(ctx context.Context, record *SubmissionRecord) error
	// FindByUserID はユーザーのスロットを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*SubmissionRecord, error)
	// DeleteByUserID はユーザーのスロットを削除する。存在しない場合も成功とする。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpiredBefore は期限がbeforeより前のスロットを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}
