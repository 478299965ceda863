// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/socialsync/internal/model"
)

// IntegrationRepository は連携アカウントの永続化インターフェース。
type IntegrationRepository interface {
	// FindByKey は(userID, platform, accountID)で連携を取得する。
	// userIDが空文字列の場合は旧グローバルレコードを対象とする。
	// 見つからない場合はnilを返す。
	FindByKey(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Integration, error)

	// FindByPlatformAccount は所有者を問わず(platform, accountID)で連携を検索する。
	// 単一アカウント同期のエントリポイントで使用する。見つからない場合はnilを返す。
	FindByPlatformAccount(ctx context.Context, platform model.Platform, accountID string) (*model.Integration, error)

	// ListByUserID はユーザーの連携一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Integration, error)

	// ListAll は全ユーザーの連携一覧を返す。フルバッチ同期で使用する。
	ListAll(ctx context.Context) ([]*model.Integration, error)

	// Upsert は連携を作成または上書きする。
	// 同一(userID, platform, accountID)が存在する場合はトークン等を更新する。
	Upsert(ctx context.Context, integration *model.Integration) error

	// UpdateCredentials はリフレッシュ成功後の新しい暗号化済みトークンを保存する。
	UpdateCredentials(ctx context.Context, id, encryptedAccessToken, encryptedRefreshToken string) error

	// UpdateStatus は連携の状態と理由文言を更新する。
	// Credential Lifecycle ManagerがDISCONNECTEDへの遷移に使用する。
	UpdateStatus(ctx context.Context, id string, status model.IntegrationStatus, errorMessage string) error

	// Delete は(userID, platform, accountID)の連携を削除する。
	Delete(ctx context.Context, userID string, platform model.Platform, accountID string) error
}

// SnapshotRepository はメトリクススナップショットの永続化インターフェース。
type SnapshotRepository interface {
	// Upsert はスナップショットを(platform, accountID, date)キーで保存する。
	// 既存キーへの保存は上書きとなる（冪等）。
	Upsert(ctx context.Context, snapshot *model.Snapshot) error

	// ListRange は指定アカウントのスナップショットを日付範囲で取得する。
	// 日付降順で返す。
	ListRange(ctx context.Context, platform model.Platform, accountID, startDate, endDate string) ([]*model.Snapshot, error)

	// DeleteOlderThan は指定日付より古いスナップショットを削除し、削除件数を返す。
	// 保持期間クリーンアップジョブで使用する。
	DeleteOlderThan(ctx context.Context, date string) (int64, error)
}

// SyncStatusRepository は同期カウンタ状態の永続化インターフェース。
type SyncStatusRepository interface {
	// Find は指定スコープの同期状態を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, scope string) (*model.SyncStatus, error)

	// Save は同期状態をUPSERTする。
	Save(ctx context.Context, status *model.SyncStatus) error
}

// SessionRepository はセッションデータの検索インターフェース。
// セッションの発行・削除は管轄外のため検索のみを定義する。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}
