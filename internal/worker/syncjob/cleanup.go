package syncjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/socialsync/internal/repository"
)

// cleanupInterval は保持期間クリーンアップの実行間隔。
const cleanupInterval = 24 * time.Hour

// CleanupJob は保持期間を過ぎたスナップショットを日次で削除する。
type CleanupJob struct {
	snapRepo      repository.SnapshotRepository
	logger        *slog.Logger
	retentionDays int
	// now はテストで差し替えるための時刻取得関数。
	now func() time.Time
}

// NewCleanupJob はCleanupJobを生成する。
// retentionDaysが0以下の場合はデフォルト値90を使用する。
func NewCleanupJob(snapRepo repository.SnapshotRepository, logger *slog.Logger, retentionDays int) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupJob{
		snapRepo:      snapRepo,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Start は日次ティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	j.logger.Info("スナップショットクリーンアップジョブを開始しました",
		slog.Int("retention_days", j.retentionDays),
	)

	// 起動直後に1回実行
	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("スナップショットクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce は保持期間を過ぎたスナップショットを1回削除する。
func (j *CleanupJob) RunOnce(ctx context.Context) {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays).Format("2006-01-02")

	deleted, err := j.snapRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("古いスナップショットの削除に失敗しました",
			slog.String("cutoff", cutoff),
			slog.String("error", err.Error()),
		)
		return
	}

	j.logger.Info("古いスナップショットを削除しました",
		slog.String("cutoff", cutoff),
		slog.Int64("deleted", deleted),
	)
}
