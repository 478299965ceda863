// Package logger はJSON構造化ログのセットアップを提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 同期エンジンの全コンポーネントはこのロガー（またはslog.Default）を使う。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}
