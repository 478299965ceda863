package platform

import (
	"errors"
	"fmt"
)

// ErrorKind はプラットフォームAPIエラーの分類。
type ErrorKind int

const (
	// KindUnauthorized は認証エラー（401/403）。トークンのリフレッシュが必要。
	KindUnauthorized ErrorKind = iota
	// KindTransient は一時的エラー（429/5xx/ネットワーク障害）。リトライ可能。
	KindTransient
)

// String はエラー分類の文字列表現を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error はプラットフォームAPI呼び出しの失敗を分類付きで表す。
type Error struct {
	Kind       ErrorKind
	Platform   string
	StatusCode int
	Message    string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s APIエラー (status=%d, kind=%s): %s", e.Platform, e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s APIエラー (kind=%s): %s", e.Platform, e.Kind, e.Message)
}

// Unwrap はラップされたエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError(platform string, statusCode int, message string) *Error {
	return &Error{Kind: KindUnauthorized, Platform: platform, StatusCode: statusCode, Message: message}
}

// NewTransientError は一時的エラーを生成する。
func NewTransientError(platform string, statusCode int, message string) *Error {
	return &Error{Kind: KindTransient, Platform: platform, StatusCode: statusCode, Message: message}
}

// NewNetworkError はネットワーク障害を一時的エラーとして生成する。
func NewNetworkError(platform string, err error) *Error {
	return &Error{Kind: KindTransient, Platform: platform, Message: err.Error(), Err: err}
}

// ClassifyHTTPStatus はHTTPステータスコードからプラットフォームエラーを生成する。
// 401/403は認証エラー、429/5xxは一時的エラー、それ以外も一時的エラーとして扱う。
// 404と空レスポンスはエラーではなくゼロ値ウィンドウとして各アダプターで処理する。
func ClassifyHTTPStatus(platform string, statusCode int, body string) *Error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return NewUnauthorizedError(platform, statusCode, body)
	case statusCode == 429 || statusCode >= 500:
		return NewTransientError(platform, statusCode, body)
	default:
		return NewTransientError(platform, statusCode, body)
	}
}

// IsUnauthorized はエラーが認証エラーかどうかを判定する。
func IsUnauthorized(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindUnauthorized
}

// IsTransient はエラーが一時的エラーかどうかを判定する。
func IsTransient(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindTransient
}
