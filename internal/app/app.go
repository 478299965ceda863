// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/socialsync/internal/auth"
	"github.com/hitoshi/socialsync/internal/config"
	"github.com/hitoshi/socialsync/internal/database"
	"github.com/hitoshi/socialsync/internal/handler"
	"github.com/hitoshi/socialsync/internal/logger"
	"github.com/hitoshi/socialsync/internal/metrics"
	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/platform"
	"github.com/hitoshi/socialsync/internal/repository"
	"github.com/hitoshi/socialsync/internal/security"
	"github.com/hitoshi/socialsync/internal/syncer"
	"github.com/hitoshi/socialsync/internal/worker/syncjob"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// engine は同期エンジンの依存一式。serveとworkerの両モードで共用する。
type engine struct {
	integRepo    *repository.PostgresIntegrationRepo
	snapRepo     *repository.PostgresSnapshotRepo
	statusRepo   *repository.PostgresSyncStatusRepo
	sessionRepo  *repository.PostgresSessionRepo
	cipher       security.TokenCipherService
	sanitizer    security.NameSanitizerService
	collector    *metrics.Collector
	registry     *prometheus.Registry
	orchestrator *syncer.Orchestrator
}

// buildEngine はDB接続から同期エンジンの依存一式を組み立てる。
func buildEngine(cfg *config.Config, db *sql.DB) (*engine, error) {
	integRepo := repository.NewPostgresIntegrationRepo(db)
	snapRepo := repository.NewPostgresSnapshotRepo(db)
	statusRepo := repository.NewPostgresSyncStatusRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	cipher, err := security.NewTokenCipher([]byte(cfg.TokenEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create token cipher: %w", err)
	}
	sanitizer := security.NewNameSanitizer()

	egress := security.NewEgressGuard()
	apiClient := egress.NewAPIClient(cfg.FetchTimeout)

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	log := slog.Default()

	adapterRegistry := platform.NewRegistry(
		platform.NewInstagramAdapter(apiClient, log),
		platform.NewFacebookAdapter(apiClient, log),
		platform.NewPinterestAdapter(apiClient, log),
		platform.NewYouTubeAdapter(apiClient, log),
	)

	// 資格情報が未設定のプラットフォームはリフレッシュ非対応として扱う
	var refreshers []auth.TokenRefresher
	if cfg.PinterestAppID != "" && cfg.PinterestAppSecret != "" {
		refreshers = append(refreshers, auth.NewPinterestRefresher(apiClient, log, cfg.PinterestAppID, cfg.PinterestAppSecret))
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		refreshers = append(refreshers, auth.NewGoogleRefresher(apiClient, log, cfg.GoogleClientID, cfg.GoogleClientSecret))
	}
	refresherRegistry := auth.NewRefresherRegistry(refreshers...)

	creds := syncer.NewCredentialManager(integRepo, refresherRegistry, cipher, collector, log)
	orchestrator := syncer.NewOrchestrator(
		integRepo, snapRepo, adapterRegistry, creds, collector, log, cfg.SyncMaxConcurrent,
	)

	return &engine{
		integRepo:    integRepo,
		snapRepo:     snapRepo,
		statusRepo:   statusRepo,
		sessionRepo:  sessionRepo,
		cipher:       cipher,
		sanitizer:    sanitizer,
		collector:    collector,
		registry:     promRegistry,
		orchestrator: orchestrator,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	eng, err := buildEngine(cfg, db)
	if err != nil {
		return err
	}

	// 手動同期バッチ用のバックグラウンド実行器
	executor := syncjob.NewExecutor(slog.Default(), 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go executor.Start(ctx)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     eng.sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		Gate:       syncer.NewGate(cfg.SyncMaxLimit, cfg.SyncCooldown),
		StatusRepo: eng.statusRepo,
		Executor:   executor,
		Syncer:     eng.orchestrator,
		MaxLimit:   cfg.SyncMaxLimit,

		IntegrationStore: eng.integRepo,
		TokenCipher:      eng.cipher,
		NameSanitizer:    eng.sanitizer,

		Snapshots: eng.snapRepo,

		Gatherer: eng.registry,
	}

	router := handler.NewRouter(deps)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、定期同期スケジューラと保持期間クリーンアップを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	eng, err := buildEngine(cfg, db)
	if err != nil {
		return err
	}

	scheduler := syncjob.NewScheduler(eng.orchestrator, slog.Default())
	cleanupJob := syncjob.NewCleanupJob(eng.snapRepo, slog.Default(), cfg.SnapshotRetentionDays)

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
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("max_concurrent", cfg.SyncMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx)

	// 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyncInterval)

	slog.Info("worker stopped gracefully")
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
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
