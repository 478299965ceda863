package syncjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/syncer"
)

// BatchSyncer はバッチ同期の実行インターフェース。
type BatchSyncer interface {
	// RunFullSync はスコープ内の全連携を同期して結果サマリを返す。
	RunFullSync(ctx context.Context, scope string) syncer.Report
}

// Scheduler は全連携の定期同期を行う。
// 指定間隔のティッカーでグローバルスコープのバッチ同期を実行する。
type Scheduler struct {
	batchSyncer BatchSyncer
	logger      *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(batchSyncer BatchSyncer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		batchSyncer: batchSyncer,
		logger:      logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はグローバルスコープのバッチ同期を1回実行する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	report := s.batchSyncer.RunFullSync(ctx, model.SyncStatusScopeGlobal)

	s.logger.Info("定期同期サイクルが完了しました",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
