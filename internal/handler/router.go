package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/socialsync/internal/metrics"
	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 同期
	Gate       GateAdmitter
	StatusRepo SyncStatusStore
	Executor   BatchSubmitter
	Syncer     SyncService
	MaxLimit   int

	// 連携
	IntegrationStore IntegrationStore
	TokenCipher      security.TokenCipherService
	NameSanitizer    security.NameSanitizerService

	// メトリクス取得
	Snapshots SnapshotFinder

	// Prometheus
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Session → RateLimit(General)
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	syncHandler := NewSyncHandler(deps.Gate, deps.StatusRepo, deps.Executor, deps.Syncer, deps.MaxLimit)
	integrationHandler := NewIntegrationHandler(deps.IntegrationStore, deps.TokenCipher, deps.NameSanitizer, deps.Executor, deps.Syncer, deps.Logger)
	snapshotHandler := NewSnapshotHandler(deps.Snapshots)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 同期
		r.Route("/api/sync", func(r chi.Router) {
			r.Post("/", syncHandler.TriggerSync)
			r.Get("/status", syncHandler.GetStatus)
			r.Post("/{platform}/{account_id}", syncHandler.SyncAccount)
		})

		// 連携管理
		r.Route("/api/integrations", func(r chi.Router) {
			// POST /api/integrations - 連携登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.RegistrationMiddleware()).Post("/", integrationHandler.Register)
			r.Get("/", integrationHandler.List)

			r.Route("/{platform}/{account_id}", func(r chi.Router) {
				r.Get("/", integrationHandler.Get)
				r.Delete("/", integrationHandler.Delete)
			})
		})

		// 保存済みメトリクス
		r.Get("/api/metrics/{platform}/{account_id}", snapshotHandler.ListMetrics)
	})

	return r
}
