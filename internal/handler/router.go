package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kanux/internal/middleware"
	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/plan"
	"github.com/hitoshi/kanux/internal/security"
)

// loginPath はCSRF検証の対象外とするログインエンドポイント。
const loginPath = "/auth/login"

// BackendAPI はハンドラーが利用するバックエンドAPIの全体。
// backend.Clientが実装する。
type BackendAPI interface {
	MessagingAPI
	DashboardAPI
	ChallengeAPI
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionLoader     middleware.SessionLoader
	GuardRecorder     middleware.GuardRecorder
	PlanScopes        middleware.ProviderAcquirer
	Gatekeeper        *middleware.Gatekeeper
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig

	Cookie          CookieConfig
	PlanWaitTimeout time.Duration

	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthService

	// バックエンドと受験
	Backend     BackendAPI
	Submissions SubmissionService
	Sanitizer   security.MessageSanitizer
}

// handlers はルーター内で共有するハンドラー群。
type handlers struct {
	auth       *AuthHandler
	pages      *PageHandler
	messages   *MessageHandler
	dashboard  *DashboardHandler
	challenges *ChallengeHandler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// グローバルなミドルウェアの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → CSRF
//
// ロール別ルート（/company/*, /talent/*）ではさらに
// Session → RoleGuard → PlanScope → RateLimit(General) を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	csrf := deps.CSRF
	csrf.ExemptPaths = append([]string{loginPath}, deps.CSRF.ExemptPaths...)

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(csrf))

	h := handlers{
		auth:       NewAuthHandler(deps.AuthService, deps.Cookie),
		pages:      NewPageHandler(deps.HealthChecker),
		messages:   NewMessageHandler(deps.Backend, deps.Sanitizer, deps.AuthService, deps.Cookie),
		dashboard:  NewDashboardHandler(deps.Backend, deps.AuthService, deps.Cookie),
		challenges: NewChallengeHandler(deps.Backend, deps.Submissions, deps.AuthService, deps.Cookie),
	}

	// プラン取得でトークンが拒否された場合もハンドラーと同じ強制ログアウトにする
	if deps.Gatekeeper != nil {
		deps.Gatekeeper.OnUnauthorized(http.HandlerFunc(newResponder(deps.AuthService, deps.Cookie).forceLogout))
	}

	// --- セッション不要のルート ---
	r.Get("/health", h.pages.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrf))

	// --- セッションを読み込むルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionLoader))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.auth.Login)
			r.Post("/logout", h.auth.Logout)
			r.Get("/me", h.auth.Me)
		})

		r.Get("/login", h.pages.Login)

		r.With(middleware.RequireMessagesAccess(deps.GuardRecorder)).
			Get("/messages", h.messages.Redirect)

		r.Route("/company", func(r chi.Router) {
			r.Get("/access-denied", h.pages.AccessDenied(model.UserTypeCompany))
			r.Group(func(r chi.Router) {
				roleScope(r, deps, model.UserTypeCompany)
				companyRoutes(r, deps, h)
			})
		})

		r.Route("/talent", func(r chi.Router) {
			r.Get("/access-denied", h.pages.AccessDenied(model.UserTypeTalent))
			r.Group(func(r chi.Router) {
				roleScope(r, deps, model.UserTypeTalent)
				talentRoutes(r, deps, h)
			})
		})
	})

	return r
}

// roleScope はロールガード、プランスコープ、一般レート制限を適用し、
// 両ロール共通のプラン関連ルートを登録する。
func roleScope(r chi.Router, deps *RouterDeps, role model.UserType) {
	r.Use(middleware.RequireRole(role, deps.GuardRecorder))
	r.Use(middleware.NewPlanScopeMiddleware(deps.PlanScopes))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	plans := NewPlanHandler(role, deps.PlanWaitTimeout, deps.AuthService, deps.Cookie)
	r.Get("/plan", plans.GetPlan)
	r.Post("/plan/refresh", plans.RefreshPlan)
	r.Get("/billing", plans.Billing)
	r.Post("/upgrade/confirm", plans.ConfirmUpgrade)
	r.Post("/upgrade/cancel", plans.CancelUpgrade)
}

func companyRoutes(r chi.Router, deps *RouterDeps, h handlers) {
	gk := deps.Gatekeeper
	action := deps.RateLimiter.ActionMiddleware()

	r.Route("/messages", func(r chi.Router) {
		r.With(gk.RequireFeature(plan.CanContactTalent)).Get("/", h.messages.ListConversations)
		r.With(gk.RequireFeature(plan.CanContactTalent)).Get("/{id}", h.messages.ListMessages)
		r.With(action, gk.GuardAction(plan.CanContactTalent, "send_message")).Post("/{id}", h.messages.SendMessage)
	})

	r.With(gk.RequireFeature(plan.CanViewAnalytics)).Get("/dashboard", h.dashboard.Get)
	r.With(action, gk.GuardAction(plan.CanCreateChallenges, "create_challenge")).Post("/challenges", h.challenges.Create)
}

func talentRoutes(r chi.Router, deps *RouterDeps, h handlers) {
	gk := deps.Gatekeeper
	action := deps.RateLimiter.ActionMiddleware()

	r.Route("/messages", func(r chi.Router) {
		r.Get("/", h.messages.ListConversations)
		r.Get("/{id}", h.messages.ListMessages)
		r.With(action).Post("/{id}", h.messages.SendMessage)
	})

	r.With(gk.RequireFeature(plan.CanViewProfileInsights)).Get("/dashboard", h.dashboard.Get)

	r.With(action, gk.GuardAction(plan.MaxMonthlySubmissions, "start_challenge")).Post("/challenges/{id}/start", h.challenges.Start)
	r.Route("/submission", func(r chi.Router) {
		r.Get("/", h.challenges.Status)
		r.With(action).Post("/submit", h.challenges.Submit)
		r.Delete("/", h.challenges.Clear)
	})
}
