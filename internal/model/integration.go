package model

import "time"

// IntegrationStatus は連携アカウントの状態を表す。
type IntegrationStatus string

const (
	// IntegrationStatusActive は同期対象のアクティブな連携状態。
	IntegrationStatusActive IntegrationStatus = "ACTIVE"
	// IntegrationStatusDisconnected はリフレッシュ失敗等により
	// 再認証が必要になった連携状態。同期対象から除外される。
	IntegrationStatusDisconnected IntegrationStatus = "DISCONNECTED"
)

// Integration は外部プラットフォームの連携アカウントを表す。
// (UserID, Platform, AccountID) の組で一意に識別される。
// アクセストークン/リフレッシュトークンはAES-GCMで暗号化して保存する。
type Integration struct {
	ID          string
	UserID      string // 旧グローバルレコードは空
	Platform    Platform
	AccountID   string
	AccountName string
	// EncryptedAccessToken は暗号化済みアクセストークン。
	EncryptedAccessToken string
	// EncryptedRefreshToken は暗号化済みリフレッシュトークン。
	// プラットフォームがリフレッシュに対応しない場合は空。
	EncryptedRefreshToken string
	Status                IntegrationStatus
	// ErrorMessage はDISCONNECTEDへ遷移した理由（ユーザー向け文言）。
	ErrorMessage string
	// Metadata はプラットフォーム固有の付随情報。
	// 例: YouTubeのcontent_owner_id。
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable は同期対象として利用可能かを返す。
func (i *Integration) Usable() bool {
	return i.Status == IntegrationStatusActive
}
