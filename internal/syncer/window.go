// Package syncer は同期エンジンの中核（ウィンドウ計画、同期ゲート、
// 資格情報ライフサイクル、オーケストレーター）を提供する。
package syncer

import (
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

// Window は[Start, End]の期間ウィンドウ。
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows は1回の同期で取得する4つの比較ウィンドウ。
// current7とprior7、current30とprior30はそれぞれ連続しており、
// 各ウィンドウの長さは正確に7日間/30日間となる。
type Windows struct {
	Current7  Window
	Prior7    Window
	Current30 Window
	Prior30   Window
}

// Plan は基準時刻とデータ確定遅延日数から4つの比較ウィンドウを計画する。
// 基準時刻をlagDaysだけ過去へずらし、そこから7日/30日の現行・前期
// ウィンドウを固定長で切り出す。純粋関数でI/Oを行わない。
func Plan(now time.Time, lagDays int) Windows {
	anchor := now.UTC().Add(-day(lagDays))
	return Windows{
		Current7:  Window{Start: anchor.Add(-day(7)), End: anchor},
		Prior7:    Window{Start: anchor.Add(-day(14)), End: anchor.Add(-day(7))},
		Current30: Window{Start: anchor.Add(-day(30)), End: anchor},
		Prior30:   Window{Start: anchor.Add(-day(60)), End: anchor.Add(-day(30))},
	}
}

// ByRawKey はウィンドウをraw_metricsキーとの対応表で返す。
func (w Windows) ByRawKey() map[string]Window {
	return map[string]Window{
		model.RawKeyPeriod7d:      w.Current7,
		model.RawKeyPeriod7dPrior: w.Prior7,
		model.RawKeyPeriod30d:     w.Current30,
		model.RawKeyPeriod30dPrior: w.Prior30,
	}
}

// day は日数を固定24時間のDurationへ変換する。
func day(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
