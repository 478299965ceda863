package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// PostgresIntegrationRepo はPostgreSQLを使用した連携リポジトリ。
type PostgresIntegrationRepo struct {
	db *sql.DB
}

// NewPostgresIntegrationRepo はPostgresIntegrationRepoを生成する。
func NewPostgresIntegrationRepo(db *sql.DB) *PostgresIntegrationRepo {
	return &PostgresIntegrationRepo{db: db}
}

const integrationColumns = `id, user_id, platform, account_id, account_name,
        encrypted_access_token, encrypted_refresh_token, status,
        error_message, metadata, created_at, updated_at`

// scanIntegration は1行をmodel.Integrationへ読み出す。
func scanIntegration(row interface{ Scan(...any) error }) (*model.Integration, error) {
	integ := &model.Integration{}
	var userID, refreshToken, errorMessage sql.NullString
	var metadata []byte

	err := row.Scan(
		&integ.ID, &userID, &integ.Platform, &integ.AccountID, &integ.AccountName,
		&integ.EncryptedAccessToken, &refreshToken, &integ.Status,
		&errorMessage, &metadata, &integ.CreatedAt, &integ.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	integ.UserID = nullStringValue(userID)
	integ.EncryptedRefreshToken = nullStringValue(refreshToken)
	integ.ErrorMessage = nullStringValue(errorMessage)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &integ.Metadata); err != nil {
			return nil, fmt.Errorf("連携メタデータの解析に失敗しました: %w", err)
		}
	}

	return integ, nil
}

// FindByKey は(userID, platform, accountID)で連携を取得する。見つからない場合はnilを返す。
func (r *PostgresIntegrationRepo) FindByKey(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Integration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+`
		 FROM integrations
		 WHERE COALESCE(user_id::text, '') = $1 AND platform = $2 AND account_id = $3`,
		userID, platform, accountID,
	)

	integ, err := scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("連携の取得に失敗しました: %w", err)
	}
	return integ, nil
}

// FindByPlatformAccount は所有者を問わず(platform, accountID)で連携を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresIntegrationRepo) FindByPlatformAccount(ctx context.Context, platform model.Platform, accountID string) (*model.Integration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+`
		 FROM integrations
		 WHERE platform = $1 AND account_id = $2
		 ORDER BY created_at
		 LIMIT 1`,
		platform, accountID,
	)

	integ, err := scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("連携の検索に失敗しました: %w", err)
	}
	return integ, nil
}

// ListByUserID はユーザーの連携一覧を返す。
func (r *PostgresIntegrationRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Integration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+integrationColumns+`
		 FROM integrations
		 WHERE user_id = $1
		 ORDER BY platform, account_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("連携一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectIntegrations(rows)
}

// ListAll は全ユーザーの連携一覧を返す。
func (r *PostgresIntegrationRepo) ListAll(ctx context.Context) ([]*model.Integration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+integrationColumns+`
		 FROM integrations
		 ORDER BY platform, account_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("全連携の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectIntegrations(rows)
}

// collectIntegrations は結果セットを全件読み出す。
func collectIntegrations(rows *sql.Rows) ([]*model.Integration, error) {
	var integrations []*model.Integration
	for rows.Next() {
		integ, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("連携行の読み出しに失敗しました: %w", err)
		}
		integrations = append(integrations, integ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("連携一覧の走査に失敗しました: %w", err)
	}
	return integrations, nil
}

// Upsert は連携を作成または上書きする。
func (r *PostgresIntegrationRepo) Upsert(ctx context.Context, integ *model.Integration) error {
	metadata, err := json.Marshal(integ.Metadata)
	if err != nil {
		return fmt.Errorf("連携メタデータの変換に失敗しました: %w", err)
	}
	if integ.Metadata == nil {
		metadata = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO integrations (id, user_id, platform, account_id, account_name,
		                           encrypted_access_token, encrypted_refresh_token, status,
		                           error_message, metadata, created_at, updated_at)
		 VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (COALESCE(user_id::text, ''), platform, account_id)
		 DO UPDATE SET
		     account_name = EXCLUDED.account_name,
		     encrypted_access_token = EXCLUDED.encrypted_access_token,
		     encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
		     status = EXCLUDED.status,
		     error_message = EXCLUDED.error_message,
		     metadata = EXCLUDED.metadata,
		     updated_at = EXCLUDED.updated_at`,
		integ.ID, integ.UserID, integ.Platform, integ.AccountID, integ.AccountName,
		integ.EncryptedAccessToken, nullString(integ.EncryptedRefreshToken), integ.Status,
		nullString(integ.ErrorMessage), metadata, integ.CreatedAt, integ.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("連携の保存に失敗しました: %w", err)
	}
	return nil
}

// UpdateCredentials はリフレッシュ成功後の新しい暗号化済みトークンを保存する。
func (r *PostgresIntegrationRepo) UpdateCredentials(ctx context.Context, id, encryptedAccessToken, encryptedRefreshToken string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE integrations SET
		     encrypted_access_token = $2,
		     encrypted_refresh_token = $3,
		     updated_at = $4
		 WHERE id = $1`,
		id, encryptedAccessToken, nullString(encryptedRefreshToken), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("連携トークンの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は連携の状態と理由文言を更新する。
func (r *PostgresIntegrationRepo) UpdateStatus(ctx context.Context, id string, status model.IntegrationStatus, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE integrations SET
		     status = $2,
		     error_message = $3,
		     updated_at = $4
		 WHERE id = $1`,
		id, status, nullString(errorMessage), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("連携状態の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は(userID, platform, accountID)の連携を削除する。
func (r *PostgresIntegrationRepo) Delete(ctx context.Context, userID string, platform model.Platform, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM integrations
		 WHERE COALESCE(user_id::text, '') = $1 AND platform = $2 AND account_id = $3`,
		userID, platform, accountID,
	)
	if err != nil {
		return fmt.Errorf("連携の削除に失敗しました: %w", err)
	}
	return nil
}
