package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/socialsync/internal/model"
)

// PostgresSyncStatusRepo はPostgreSQLを使用した同期状態リポジトリ。
type PostgresSyncStatusRepo struct {
	db *sql.DB
}

// NewPostgresSyncStatusRepo はPostgresSyncStatusRepoを生成する。
func NewPostgresSyncStatusRepo(db *sql.DB) *PostgresSyncStatusRepo {
	return &PostgresSyncStatusRepo{db: db}
}

// Find は指定スコープの同期状態を取得する。見つからない場合はnilを返す。
func (r *PostgresSyncStatusRepo) Find(ctx context.Context, scope string) (*model.SyncStatus, error) {
	status := &model.SyncStatus{}
	var lastSyncAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT scope, sync_count, limit_reached, last_sync_at
		 FROM sync_status WHERE scope = $1`,
		scope,
	).Scan(&status.Scope, &status.SyncCount, &status.LimitReached, &lastSyncAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("同期状態の取得に失敗しました: %w", err)
	}

	if lastSyncAt.Valid {
		status.LastSyncAt = lastSyncAt.Time
	}
	return status, nil
}

// Save は同期状態をUPSERTする。
func (r *PostgresSyncStatusRepo) Save(ctx context.Context, status *model.SyncStatus) error {
	var lastSyncAt sql.NullTime
	if !status.LastSyncAt.IsZero() {
		lastSyncAt = sql.NullTime{Time: status.LastSyncAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_status (scope, sync_count, limit_reached, last_sync_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (scope)
		 DO UPDATE SET
		     sync_count = EXCLUDED.sync_count,
		     limit_reached = EXCLUDED.limit_reached,
		     last_sync_at = EXCLUDED.last_sync_at`,
		status.Scope, status.SyncCount, status.LimitReached, lastSyncAt,
	)
	if err != nil {
		return fmt.Errorf("同期状態の保存に失敗しました: %w", err)
	}
	return nil
}
