package plan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/model"
)

// defaultFetchTimeout は1回のプラン取得に許す最大時間。
const defaultFetchTimeout = 10 * time.Second

// Fetcher は現在のアイデンティティのプランを取得する。
type Fetcher interface {
	FetchPlan(ctx context.Context, token string, userType model.UserType) (*Plan, error)
}

// Snapshot はある時点のプロバイダーの状態。
// Loading中はPlanを使って判定してはならない。
type Snapshot struct {
	Plan     *Plan
	UserType model.UserType
	Loading  bool
	Err      error
}

// Features はスナップショットの機能フラグを返す。プランが無い場合はゼロ値（全て無効）。
func (s Snapshot) Features() Features {
	if s.Plan == nil {
		return Features{}
	}
	return s.Plan.Features
}

// Unauthorized はバックエンドがトークンを拒否したためにプランを取得できなかったかどうかを返す。
// この場合はアップグレード導線ではなく強制ログアウトの対象になる。
func (s Snapshot) Unauthorized() bool {
	return !s.Loading && errors.Is(s.Err, backend.ErrUnauthorized)
}

// Provider は1つのアイデンティティにスコープされたプランプロバイダー。
// Initでスコープに入り、Disposeでスコープを抜ける。
// 取得は非同期に行われ、取得ごとに世代番号を振る。最新世代以外の結果は捨てるため、
// ユーザー種別を素早く切り替えても古いレスポンスで上書きされることはない。
type Provider struct {
	fetcher      Fetcher
	token        string
	logger       *slog.Logger
	fetchTimeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	userType   model.UserType
	plan       *Plan
	err        error
	loading    bool
	ready      chan struct{}
	generation uint64
	started    bool
	disposed   bool
}

// NewProvider はProviderを生成する。Initを呼ぶまで状態はLoadingのまま。
func NewProvider(fetcher Fetcher, token string, userType model.UserType, logger *slog.Logger) *Provider {
	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		fetcher:      fetcher,
		token:        token,
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
		baseCtx:      ctx,
		cancel:       cancel,
		userType:     userType,
		loading:      true,
		ready:        make(chan struct{}),
	}
}

// Init はスコープ開始時の初回取得を開始する。2回目以降の呼び出しは何もしない。
func (p *Provider) Init() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.startFetch()
}

// Refresh はプランを取得し直す。何度呼んでもよい。
func (p *Provider) Refresh() {
	p.startFetch()
}

// SetUserType はユーザー種別を切り替える。変化した場合のみ再取得する。
func (p *Provider) SetUserType(userType model.UserType) {
	p.mu.Lock()
	if p.userType == userType {
		p.mu.Unlock()
		return
	}
	p.userType = userType
	p.mu.Unlock()

	p.startFetch()
}

// Snapshot は現在の状態を返す。
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Plan:     p.plan,
		UserType: p.userType,
		Loading:  p.loading,
		Err:      p.err,
	}
}

// Wait は取得が終わるかctxが終了するまで待ち、その時点のスナップショットを返す。
func (p *Provider) Wait(ctx context.Context) Snapshot {
	p.mu.Lock()
	loading := p.loading
	ready := p.ready
	p.mu.Unlock()

	if loading {
		select {
		case <-ready:
		case <-ctx.Done():
		}
	}
	return p.Snapshot()
}

// Dispose はスコープを終了する。進行中の取得はキャンセルされ、待機中の呼び出しは解放される。
func (p *Provider) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return
	}
	p.disposed = true
	p.cancel()
	p.plan = nil
	if p.loading {
		p.loading = false
		close(p.ready)
	}
}

func (p *Provider) startFetch() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.generation++
	gen := p.generation
	userType := p.userType
	if !p.loading {
		p.loading = true
		p.ready = make(chan struct{})
	}
	p.mu.Unlock()

	go p.fetch(gen, userType)
}

func (p *Provider) fetch(gen uint64, userType model.UserType) {
	ctx, cancel := context.WithTimeout(p.baseCtx, p.fetchTimeout)
	defer cancel()

	plan, err := p.fetcher.FetchPlan(ctx, p.token, userType)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || gen != p.generation {
		p.logger.Debug("discarding stale plan response",
			slog.Uint64("generation", gen),
			slog.Uint64("latest", p.generation),
		)
		return
	}

	if err != nil {
		p.logger.Error("failed to fetch plan",
			slog.String("user_type", string(userType)),
			slog.String("error", err.Error()),
		)
		p.plan = nil
		p.err = err
	} else {
		p.plan = plan
		p.err = nil
	}
	p.loading = false
	close(p.ready)
}
