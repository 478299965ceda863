// Package syncjob は同期のバックグラウンド実行（手動バッチの
// 非同期実行、定期同期、スナップショットの保持期間クリーンアップ）を提供する。
package syncjob

import (
	"context"
	"log/slog"
)

// Task はバックグラウンドで実行する1件の処理。
type Task struct {
	// Name はログ出力用のタスク名。
	Name string
	// Run は実行本体。完了や失敗は呼び出し元へ返さずログにのみ残る。
	Run func(ctx context.Context)
}

// Executor は手動同期バッチのfire-and-forget実行器。
// 単一ワーカーでキュー順に実行し、結果はログにのみ記録する。
// HTTPハンドラーはSubmitの成否だけを見て即座に応答を返す。
type Executor struct {
	queue  chan Task
	logger *slog.Logger
}

// NewExecutor はExecutorを生成する。queueSizeが0以下の場合は16を使用する。
func NewExecutor(logger *slog.Logger, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Executor{
		queue:  make(chan Task, queueSize),
		logger: logger,
	}
}

// Submit はタスクをキューへ投入する。キューが満杯の場合は
// falseを返し、タスクは破棄される。
func (e *Executor) Submit(task Task) bool {
	select {
	case e.queue <- task:
		return true
	default:
		e.logger.Warn("実行キューが満杯のためタスクを破棄しました",
			slog.String("task", task.Name),
		)
		return false
	}
}

// Start はワーカーループを起動する。コンテキストがキャンセルされるまで
// キューのタスクを順に実行する。
func (e *Executor) Start(ctx context.Context) {
	e.logger.Info("バックグラウンド実行器を開始しました")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("バックグラウンド実行器を停止しました")
			return
		case task := <-e.queue:
			e.logger.Info("バックグラウンドタスクを開始します",
				slog.String("task", task.Name),
			)
			task.Run(ctx)
			e.logger.Info("バックグラウンドタスクが終了しました",
				slog.String("task", task.Name),
			)
		}
	}
}
