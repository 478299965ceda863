package model

import "time"

// SyncStatusScopeGlobal はユーザーに紐付かない同期状態のスコープキー。
const SyncStatusScopeGlobal = "global"

// SyncStatus は手動同期の許可判定に使うカウンタ状態を表す。
// スコープ（ユーザーIDまたはglobal）ごとに1レコード保持し、
// Sync Gateだけがこれを更新する。
type SyncStatus struct {
	// Scope はユーザーIDまたはSyncStatusScopeGlobal。
	Scope string
	// SyncCount は現在のクールダウンウィンドウ内の同期実行回数。
	SyncCount int
	// LimitReached は上限到達フラグ。trueの間はクールダウン経過まで
	// 新しい同期を受け付けない。
	LimitReached bool
	// LastSyncAt は最後に同期が許可された時刻。
	LastSyncAt time.Time
}
