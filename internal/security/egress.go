// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// EgressGuardService は外部API呼び出し用HTTPクライアント生成のインターフェース。
// 全プラットフォームアダプタとトークンリフレッシュはこのクライアントを経由する。
type EgressGuardService interface {
	// NewAPIClient は送信先を既知のプラットフォームAPIホストに限定した
	// HTTPクライアントを生成する。保存済みアカウントIDからURLを組み立てる
	// 性質上、予期しないホストへのリクエストはここで遮断される。
	NewAPIClient(timeout time.Duration) *http.Client
}

// allowedAPIHosts は送信を許可するプラットフォームAPIホスト。
var allowedAPIHosts = []string{
	"graph.facebook.com",
	"api.pinterest.com",
	"www.googleapis.com",
	"youtubeanalytics.googleapis.com",
	"oauth2.googleapis.com",
}

// egressGuard はEgressGuardServiceの実装。
type egressGuard struct{}

// NewEgressGuard はEgressGuardServiceの新しいインスタンスを生成する。
func NewEgressGuard() *egressGuard {
	return &egressGuard{}
}

// NewAPIClient は許可ホスト限定のHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスも検証するため、
// プライベートIPやメタデータIPへ解決されるリクエストも遮断される。
func (g *egressGuard) NewAPIClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		SetAllowedHosts(allowedAPIHosts...).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}
