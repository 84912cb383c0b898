package plan

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/kanux/internal/model"
)

// scopedProvider はセッションごとのプロバイダーと最終アクセス時刻を保持する。
type scopedProvider struct {
	provider   *Provider
	lastAccess time.Time
}

// Registry はセッションIDごとにプロバイダーのスコープを管理する。
// スコープはAcquireで開始し、Release（ログアウト）またはアイドルTTL超過で終了する。
type Registry struct {
	fetcher         Fetcher
	logger          *slog.Logger
	idleTTL         time.Duration
	cleanupInterval time.Duration
	fetchTimeout    time.Duration
	now             func() time.Time

	mu        sync.Mutex
	providers map[string]*scopedProvider

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry は新しいRegistryを生成し、アイドルスコープのクリーンアップを開始する。
func NewRegistry(fetcher Fetcher, idleTTL, fetchTimeout time.Duration, logger *slog.Logger) *Registry {
	interval := idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	r := &Registry{
		fetcher:         fetcher,
		logger:          logger,
		idleTTL:         idleTTL,
		cleanupInterval: interval,
		fetchTimeout:    fetchTimeout,
		now:             time.Now,
		providers:       make(map[string]*scopedProvider),
		stopCh:          make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Acquire はセッションのプロバイダーを返す。存在しなければ生成して初回取得を開始する。
// 既存スコープのユーザー種別が変わっていれば再取得する。
func (r *Registry) Acquire(sessionID, token string, userType model.UserType) *Provider {
	r.mu.Lock()
	sp, exists := r.providers[sessionID]
	if exists {
		sp.lastAccess = r.now()
		r.mu.Unlock()
		sp.provider.SetUserType(userType)
		return sp.provider
	}

	p := NewProvider(r.fetcher, token, userType, r.logger)
	p.fetchTimeout = r.fetchTimeout
	r.providers[sessionID] = &scopedProvider{provider: p, lastAccess: r.now()}
	r.mu.Unlock()

	p.Init()
	return p
}

// Lookup は既存のプロバイダーを返す。スコープが無い場合はnilを返す。
func (r *Registry) Lookup(sessionID string) *Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sp, ok := r.providers[sessionID]; ok {
		return sp.provider
	}
	return nil
}

// Release はセッションのスコープを終了し、プロバイダーを破棄する。
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	sp, exists := r.providers[sessionID]
	delete(r.providers, sessionID)
	r.mu.Unlock()

	if exists {
		sp.provider.Dispose()
		r.logger.Debug("plan scope released", slog.String("session_id", sessionID))
	}
}

// Len は現在のスコープ数を返す。テストおよびメトリクス用。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// Stop はクリーンアップを停止し、すべてのスコープを破棄する。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		providers := r.providers
		r.providers = make(map[string]*scopedProvider)
		r.mu.Unlock()

		for _, sp := range providers {
			sp.provider.Dispose()
		}
	})
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからidleTTLを超えたスコープを破棄する。
func (r *Registry) evictIdle() {
	now := r.now()

	r.mu.Lock()
	var expired []*Provider
	for id, sp := range r.providers {
		if now.Sub(sp.lastAccess) > r.idleTTL {
			expired = append(expired, sp.provider)
			delete(r.providers, id)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		p.Dispose()
	}
	if len(expired) > 0 {
		r.logger.Info("evicted idle plan scopes", slog.Int("count", len(expired)))
	}
}
