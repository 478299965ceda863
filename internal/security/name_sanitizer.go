package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は外部由来文字列のサニタイズ機能のインターフェースを定義する。
// プラットフォームAPIが返すアカウント表示名や、エラーメッセージとして保存する
// プラットフォーム由来の文言は、保存前にこのサニタイザを通す。
type NameSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去し、前後の空白を削った
	// プレーンテキストを返す。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// 表示名はプレーンテキストとして扱うため、許可タグを一切持たない
// StrictPolicyを使用する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去したプレーンテキストを返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
