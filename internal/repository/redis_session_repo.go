package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisSessionKeyPrefix はセッションキーの接頭辞。
const redisSessionKeyPrefix = "kanux:session:"

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// 期限切れはキーのTTLで表現するため、DeleteExpiredは常に0件になる。
type RedisSessionRepo struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client redis.UniversalClient) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, now: time.Now}
}

// redisSessionPayload はRedisに保存する値の形。
type redisSessionPayload struct {
	UserID    string          `json:"user_id"`
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// Save はセッションを期限までのTTL付きで保存する。
func (r *RedisSessionRepo) Save(ctx context.Context, record *SessionRecord) error {
	ttl := record.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("failed to save session: already expired at %s", record.ExpiresAt.Format(time.RFC3339))
	}

	payload, err := json.Marshal(redisSessionPayload{
		UserID:    record.UserID,
		Data:      record.Data,
		ExpiresAt: record.ExpiresAt,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisSessionKeyPrefix+record.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。存在しない場合はnilを返す。
// 値が壊れている場合は、呼び出し側が削除できるよう生のバイト列をDataに入れて返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*SessionRecord, error) {
	b, err := r.client.Get(ctx, redisSessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var payload redisSessionPayload
	if err := json.Unmarshal(b, &payload); err != nil {
		return &SessionRecord{ID: id, Data: b}, nil
	}
	return &SessionRecord{
		ID:        id,
		UserID:    payload.UserID,
		Data:      payload.Data,
		ExpiresAt: payload.ExpiresAt,
		CreatedAt: payload.CreatedAt,
	}, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisSessionKeyPrefix+id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はRedisのTTLに任せるため何もしない。
func (r *RedisSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
