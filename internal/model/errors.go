package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidPlatform     = "INVALID_PLATFORM"
	ErrCodeIntegrationNotFound = "INTEGRATION_NOT_FOUND"
	ErrCodeSyncLimitReached    = "SYNC_LIMIT_REACHED"
	ErrCodeSyncFailed          = "SYNC_FAILED"
	ErrCodeReconnectRequired   = "RECONNECT_REQUIRED"
	ErrCodeEmptyAccessToken    = "EMPTY_ACCESS_TOKEN"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
)

// NewInvalidPlatformError は未対応プラットフォームエラーを生成する。
func NewInvalidPlatformError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlatform,
		Message:  fmt.Sprintf("未対応のプラットフォームです: %s", platform),
		Category: "validation",
		Action:   "instagram、facebook、pinterest、youtube のいずれかを指定してください。",
	}
}

// NewIntegrationNotFoundError は連携未検出エラーを生成する。
func NewIntegrationNotFoundError(platform, accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeIntegrationNotFound,
		Message:  fmt.Sprintf("指定された連携が見つかりません: %s/%s", platform, accountID),
		Category: "sync",
		Action:   "連携一覧でプラットフォームとアカウントIDを確認してください。",
	}
}

// NewSyncLimitReachedError は同期回数上限エラーを生成する。
// waitMinutesは次に同期可能になるまでの分数。
func NewSyncLimitReachedError(waitMinutes int) *APIError {
	return &APIError{
		Code:     ErrCodeSyncLimitReached,
		Message:  fmt.Sprintf("同期回数の上限に達しています。あと%d分お待ちください。", waitMinutes),
		Category: "sync",
		Action:   "クールダウン経過後に再度お試しください。",
	}
}

// NewSyncFailedError は同期失敗エラーを生成する。
func NewSyncFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSyncFailed,
		Message:  fmt.Sprintf("同期に失敗しました: %s", reason),
		Category: "sync",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewReconnectRequiredError は再認証が必要な連携に対するエラーを生成する。
func NewReconnectRequiredError(platform, accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeReconnectRequired,
		Message:  fmt.Sprintf("連携の認証が無効になっています: %s/%s", platform, accountID),
		Category: "sync",
		Action:   "連携ページからアカウントを再接続してください。",
	}
}

// NewEmptyAccessTokenError はアクセストークン未指定エラーを生成する。
func NewEmptyAccessTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyAccessToken,
		Message:  "アクセストークンが指定されていません。",
		Category: "validation",
		Action:   "有効なアクセストークンを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
