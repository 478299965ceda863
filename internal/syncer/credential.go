package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/socialsync/internal/auth"
	"github.com/hitoshi/socialsync/internal/metrics"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/repository"
	"github.com/hitoshi/socialsync/internal/security"
)

// TerminalError はリフレッシュ手段が尽きた連携に対する恒久的エラー。
// 連携はDISCONNECTEDへ遷移済みで、再接続されるまで同期対象から外れる。
type TerminalError struct {
	Platform  model.Platform
	AccountID string
	Reason    string
}

// Error はerrorインターフェースを実装する。
func (e *TerminalError) Error() string {
	return fmt.Sprintf("連携の認証が無効になっています (%s/%s): %s", e.Platform, e.AccountID, e.Reason)
}

// IsTerminal はエラーが恒久的エラーかどうかを判定する。
func IsTerminal(err error) bool {
	var terr *TerminalError
	return errors.As(err, &terr)
}

// CredentialManager は連携アカウントの資格情報ライフサイクルを管理する。
// トークンの復号、リフレッシュ、リフレッシュ不能時のDISCONNECTED遷移を担う。
type CredentialManager struct {
	integRepo  repository.IntegrationRepository
	refreshers *auth.RefresherRegistry
	cipher     security.TokenCipherService
	collector  metrics.MetricsCollector
	logger     *slog.Logger
}

// NewCredentialManager はCredentialManagerを生成する。
func NewCredentialManager(
	integRepo repository.IntegrationRepository,
	refreshers *auth.RefresherRegistry,
	cipher security.TokenCipherService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *CredentialManager {
	return &CredentialManager{
		integRepo:  integRepo,
		refreshers: refreshers,
		cipher:     cipher,
		collector:  collector,
		logger:     logger,
	}
}

// AccessToken は連携の暗号化済みアクセストークンを復号して返す。
func (m *CredentialManager) AccessToken(integ *model.Integration) (string, error) {
	token, err := m.cipher.Decrypt(integ.EncryptedAccessToken)
	if err != nil {
		return "", fmt.Errorf("アクセストークンの復号に失敗しました: %w", err)
	}
	return token, nil
}

// Refresh は連携のアクセストークンをリフレッシュして新しい平文トークンを返す。
// 新しいトークンは暗号化して連携に保存する。リフレッシュトークンが無い、
// プラットフォームがリフレッシュ非対応、または交換自体が失敗した場合は
// 連携をDISCONNECTEDへ遷移させて*TerminalErrorを返す。
func (m *CredentialManager) Refresh(ctx context.Context, integ *model.Integration) (string, error) {
	refresher, ok := m.refreshers.Get(integ.Platform)
	if !ok {
		return "", m.disconnect(ctx, integ, "このプラットフォームはトークンのリフレッシュに対応していません。再接続してください。")
	}
	if integ.EncryptedRefreshToken == "" {
		return "", m.disconnect(ctx, integ, "リフレッシュトークンが登録されていません。再接続してください。")
	}

	refreshToken, err := m.cipher.Decrypt(integ.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("リフレッシュトークンの復号に失敗しました: %w", err)
	}

	newToken, err := refresher.Refresh(ctx, refreshToken)
	if err != nil {
		m.collector.RecordRefreshResult(string(integ.Platform), false)
		m.logger.Error("トークンのリフレッシュに失敗しました",
			slog.String("platform", string(integ.Platform)),
			slog.String("account_id", integ.AccountID),
			slog.String("error", err.Error()),
		)
		return "", m.disconnect(ctx, integ, "リフレッシュトークンが失効または取り消されています。再接続してください。")
	}

	encryptedAccess, err := m.cipher.Encrypt(newToken.AccessToken)
	if err != nil {
		return "", fmt.Errorf("アクセストークンの暗号化に失敗しました: %w", err)
	}

	// 新しいリフレッシュトークンが返らない場合は既存のものを維持する
	encryptedRefresh := integ.EncryptedRefreshToken
	if newToken.RefreshToken != "" {
		encryptedRefresh, err = m.cipher.Encrypt(newToken.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("リフレッシュトークンの暗号化に失敗しました: %w", err)
		}
	}

	if err := m.integRepo.UpdateCredentials(ctx, integ.ID, encryptedAccess, encryptedRefresh); err != nil {
		return "", fmt.Errorf("新しいトークンの保存に失敗しました: %w", err)
	}

	integ.EncryptedAccessToken = encryptedAccess
	integ.EncryptedRefreshToken = encryptedRefresh
	integ.UpdatedAt = time.Now()

	m.collector.RecordRefreshResult(string(integ.Platform), true)
	m.logger.Info("トークンをリフレッシュしました",
		slog.String("platform", string(integ.Platform)),
		slog.String("account_id", integ.AccountID),
	)

	return newToken.AccessToken, nil
}

// disconnect は連携をDISCONNECTEDへ遷移させ、恒久的エラーを返す。
func (m *CredentialManager) disconnect(ctx context.Context, integ *model.Integration, reason string) error {
	if err := m.integRepo.UpdateStatus(ctx, integ.ID, model.IntegrationStatusDisconnected, reason); err != nil {
		m.logger.Error("連携状態の更新に失敗しました",
			slog.String("platform", string(integ.Platform)),
			slog.String("account_id", integ.AccountID),
			slog.String("error", err.Error()),
		)
	}
	integ.Status = model.IntegrationStatusDisconnected
	integ.ErrorMessage = reason

	m.logger.Warn("連携をDISCONNECTEDへ遷移させました",
		slog.String("platform", string(integ.Platform)),
		slog.String("account_id", integ.AccountID),
		slog.String("reason", reason),
	)

	return &TerminalError{
		Platform:  integ.Platform,
		AccountID: integ.AccountID,
		Reason:    reason,
	}
}
