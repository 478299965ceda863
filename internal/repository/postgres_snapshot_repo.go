package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// Upsert はスナップショットを(platform, accountID, date)キーで保存する。
// 既存キーへの保存は上書きとなる（冪等）。
func (r *PostgresSnapshotRepo) Upsert(ctx context.Context, s *model.Snapshot) error {
	raw, err := json.Marshal(s.RawMetrics)
	if err != nil {
		return fmt.Errorf("raw_metricsの変換に失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO metric_snapshots (platform, account_id, date,
		     followers_total, followers_new, views_organic, views_ads,
		     interactions, profile_visits, accounts_reached, saves,
		     watch_time_hours, raw_metrics, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (platform, account_id, date)
		 DO UPDATE SET
		     followers_total = EXCLUDED.followers_total,
		     followers_new = EXCLUDED.followers_new,
		     views_organic = EXCLUDED.views_organic,
		     views_ads = EXCLUDED.views_ads,
		     interactions = EXCLUDED.interactions,
		     profile_visits = EXCLUDED.profile_visits,
		     accounts_reached = EXCLUDED.accounts_reached,
		     saves = EXCLUDED.saves,
		     watch_time_hours = EXCLUDED.watch_time_hours,
		     raw_metrics = EXCLUDED.raw_metrics,
		     created_at = EXCLUDED.created_at`,
		s.Platform, s.AccountID, s.Date,
		s.FollowersTotal, s.FollowersNew, s.ViewsOrganic, s.ViewsAds,
		s.Interactions, s.ProfileVisits, s.AccountsReached, s.Saves,
		s.WatchTimeHours, raw, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

// ListRange は指定アカウントのスナップショットを日付範囲で取得する。日付降順。
func (r *PostgresSnapshotRepo) ListRange(ctx context.Context, platform model.Platform, accountID, startDate, endDate string) ([]*model.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT platform, account_id, to_char(date, 'YYYY-MM-DD'),
		        followers_total, followers_new, views_organic, views_ads,
		        interactions, profile_visits, accounts_reached, saves,
		        watch_time_hours, raw_metrics, created_at
		 FROM metric_snapshots
		 WHERE platform = $1 AND account_id = $2 AND date BETWEEN $3 AND $4
		 ORDER BY date DESC`,
		platform, accountID, startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("スナップショット範囲の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var snapshots []*model.Snapshot
	for rows.Next() {
		s := &model.Snapshot{}
		var raw []byte
		err := rows.Scan(
			&s.Platform, &s.AccountID, &s.Date,
			&s.FollowersTotal, &s.FollowersNew, &s.ViewsOrganic, &s.ViewsAds,
			&s.Interactions, &s.ProfileVisits, &s.AccountsReached, &s.Saves,
			&s.WatchTimeHours, &raw, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("スナップショット行の読み出しに失敗しました: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &s.RawMetrics); err != nil {
				return nil, fmt.Errorf("raw_metricsの解析に失敗しました: %w", err)
			}
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スナップショット一覧の走査に失敗しました: %w", err)
	}

	return snapshots, nil
}

// DeleteOlderThan は指定日付より古いスナップショットを削除し、削除件数を返す。
func (r *PostgresSnapshotRepo) DeleteOlderThan(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM metric_snapshots WHERE date < $1`,
		date,
	)
	if err != nil {
		return 0, fmt.Errorf("古いスナップショットの削除に失敗しました: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}
