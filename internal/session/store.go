// Package session はログインセッションの永続化と公開を提供する。
// セッションは永続スロットに保存され、ゲートウェイの再起動後も復元される。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/repository"
)

// State はスロットから読み出したセッションの状態。
// Loading がtrueの間はスロットがまだ読めておらず、Session の有無で判定してはならない。
type State struct {
	Session *model.Session
	Loading bool
}

// Listener はログイン/ログアウト時に通知を受け取る。ログアウト時のsessionはnil。
type Listener func(id string, session *model.Session)

// Store はセッションスロットへの読み書きと変更の通知を行う。
type Store struct {
	repo   repository.SessionRepository
	logger *slog.Logger
	maxAge time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// NewStore はStoreを生成する。maxAgeはセッションの有効期間。
func NewStore(repo repository.SessionRepository, maxAge time.Duration, logger *slog.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Subscribe はリスナーを登録する。
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Login は新しいアイデンティティを保存し、リスナーに公開する。
// ゲートウェイ側のセッションIDと有効期限はここで割り当てる。
func (s *Store) Login(ctx context.Context, sess *model.Session) (*model.Session, error) {
	if err := sess.User.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session user: %w", err)
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	stored := *sess
	stored.ID = id
	stored.IsAuthenticated = true
	stored.CreatedAt = now
	stored.ExpiresAt = now.Add(s.maxAge)

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.repo.Save(ctx, &repository.SessionRecord{
		ID:        stored.ID,
		UserID:    stored.User.ID,
		Data:      data,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("session created",
		slog.String("user_id", stored.User.ID),
		slog.String("user_type", string(stored.User.UserType)),
	)
	s.publish(stored.ID, &stored)

	return &stored, nil
}

// Logout はスロットを削除し、リスナーにnilを公開する。
func (s *Store) Logout(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.publish(id, nil)
	return nil
}

// Load はスロットからセッションを読み出す。
// スロットの読み出しに失敗した場合はLoadingを返す。
// データが存在しない、または壊れている場合はSessionをnilにする（壊れたデータは削除する）。
// トークンの有効期限が切れている場合はIsAuthenticatedをfalseにする。
func (s *Store) Load(ctx context.Context, id string) State {
	if id == "" {
		return State{}
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to read session slot",
			slog.String("error", err.Error()),
		)
		return State{Loading: true}
	}
	if record == nil {
		return State{}
	}

	var sess model.Session
	if err := json.Unmarshal(record.Data, &sess); err != nil {
		s.logger.Warn("discarding corrupt session",
			slog.String("error", err.Error()),
		)
		if err := s.repo.DeleteByID(ctx, id); err != nil {
			s.logger.Error("failed to delete corrupt session",
				slog.String("error", err.Error()),
			)
		}
		return State{}
	}
	sess.ID = id

	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		return State{}
	}
	if tokenExpired(sess.Token, s.now()) {
		sess.IsAuthenticated = false
	}

	return State{Session: &sess}
}

// DeleteExpired は期限切れのセッションを削除する。クリーンアップジョブから呼ばれる。
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *Store) publish(id string, sess *model.Session) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(id, sess)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
