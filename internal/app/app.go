package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/config"
	"github.com/hitoshi/kanux/internal/database"
	"github.com/hitoshi/kanux/internal/handler"
	"github.com/hitoshi/kanux/internal/logger"
	"github.com/hitoshi/kanux/internal/metrics"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
	"github.com/hitoshi/kanux/internal/repository"
	"github.com/hitoshi/kanux/internal/security"
	"github.com/hitoshi/kanux/internal/session"
	"github.com/hitoshi/kanux/internal/submission"
	"github.com/hitoshi/kanux/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_store", cfg.SessionStore),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openSessionRepo はSESSION_STOREに応じたセッションの永続化先を返す。
// closeは呼び出し側が終了時に呼ぶ。
func openSessionRepo(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.SessionRepository, func(), error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return repository.NewPostgresSessionRepo(db), func() {}, nil
	}

	client, err := database.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connection established")
	return repository.NewRedisSessionRepo(client), func() { client.Close() }, nil
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストレージ
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established")

	sessionRepo, closeSessions, err := openSessionRepo(context.Background(), cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 3. バックエンドAPIクライアント
	client := backend.NewClient(
		&http.Client{Timeout: cfg.BackendTimeout},
		cfg.BackendAPIURL,
		logger.Component("backend"),
	).WithRecorder(collector)

	// 4. セッション
	sessionStore := session.NewStore(sessionRepo, time.Duration(cfg.SessionMaxAge)*time.Second, logger.Component("session"))
	sessionService := session.NewService(client, sessionStore, logger.Component("session"), collector)

	// 5. プランスコープ。ログアウト（強制ログアウトを含む）でスコープを破棄する
	registry := plan.NewRegistry(
		plan.NewBackendFetcher(client, logger.Component("plan"), collector),
		cfg.PlanIdleTTL,
		cfg.BackendTimeout,
		logger.Component("plan"),
	)
	defer registry.Stop()
	sessionStore.Subscribe(func(id string, sess *model.Session) {
		if sess == nil {
			registry.Release(id)
		}
	})
	collector.RegisterPlanScopes(registry.Len)

	// 6. 受験状態
	submissionStore := submission.NewStore(repository.NewPostgresSubmissionRepo(db), logger.Component("submission"))
	submissionService := submission.NewService(client, submissionStore, logger.Component("submission"), collector)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAction))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionLoader:     sessionStore,
		GuardRecorder:     collector,
		PlanScopes:        registry,
		Gatekeeper:        middleware.NewGatekeeper(cfg.PlanWaitTimeout, collector),
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Cookie: handler.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
			MaxAge: cfg.SessionMaxAge,
		},
		PlanWaitTimeout: cfg.PlanWaitTimeout,
		HealthChecker:   db,
		MetricsHandler:  metrics.Handler(reg),

		AuthService: sessionService,
		Backend:     client,
		Submissions: submissionService,
		Sanitizer:   security.NewMessageSanitizer(),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションと受験状態のクリーンアップをCLEANUP_INTERVALごとに実行し、
// SERVER_PORTで/metricsを公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established (worker)")

	sessionRepo, closeSessions, err := openSessionRepo(context.Background(), cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	workerLogger := logger.Component("cleanup")
	job := cleanup.NewCleanupJob(
		session.NewStore(sessionRepo, time.Duration(cfg.SessionMaxAge)*time.Second, workerLogger),
		submission.NewStore(repository.NewPostgresSubmissionRepo(db), workerLogger),
		workerLogger,
		collector,
	)
	job.Retention = cfg.SubmissionRetention

	metricsServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      metrics.SetupMetricsRoute(reg),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("submission_retention", cfg.SubmissionRetention),
	)

	job.Start(ctx, cfg.CleanupInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// serveUntilSignal はサーバーを起動し、SIGINT/SIGTERMで30秒以内にシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せる。解釈できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
