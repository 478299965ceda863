package model

import "time"

// User はサービス利用ユーザーを表す。
// ユーザー登録・パスワード検証は本サービスの管轄外で、
// 同期エンジンは連携の所有者としてのみ参照する。
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// セッションの発行は管轄外であり、ここでは検証にのみ使用する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
