package syncer

import (
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// RateLimitedError は同期ゲートによる拒否を表す。
// WaitMinutesは次に同期可能になるまでの分数（切り上げ）。
type RateLimitedError struct {
	WaitMinutes int
}

// Error はerrorインターフェースを実装する。
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("同期回数の上限に達しています。あと%d分お待ちください。", e.WaitMinutes)
}

// Gate は手動同期の回数制限を判定する。
// クールダウンウィンドウ内で最大maxLimit回まで許可し、上限到達後は
// 最後の許可からcooldown経過で再び受け付ける。
// 状態の持ち方は明示的な入出力とし、Gate自身は状態を保持しない。
type Gate struct {
	maxLimit int
	cooldown time.Duration
	// now はテストで差し替えるための時刻取得関数。
	now func() time.Time
}

// NewGate はGateを生成する。
func NewGate(maxLimit int, cooldown time.Duration) *Gate {
	return &Gate{
		maxLimit: maxLimit,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Admit は同期要求の許可を判定する。
// 許可した場合はカウンタを進めた新しい状態を返す。呼び出し側は
// バッチを起動する前にこの状態を永続化しなければならない。
// 拒否した場合は現状態のまま*RateLimitedErrorを返す。
func (g *Gate) Admit(state *model.SyncStatus) (*model.SyncStatus, error) {
	now := g.now()

	next := *state

	if next.LimitReached {
		elapsed := now.Sub(next.LastSyncAt)
		if elapsed < g.cooldown {
			wait := int(math.Ceil(((g.cooldown - elapsed).Minutes())))
			if wait < 1 {
				wait = 1
			}
			return state, &RateLimitedError{WaitMinutes: wait}
		}
		// クールダウン経過: カウンタをリセットして受け付ける
		next.LimitReached = false
		next.SyncCount = 0
	}

	next.SyncCount++
	next.LastSyncAt = now
	if next.SyncCount >= g.maxLimit {
		next.LimitReached = true
	}

	return &next, nil
}
