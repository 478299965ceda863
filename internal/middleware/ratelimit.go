package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
// 同期ゲート（永続化されるクールダウン）とは別に、
// HTTPレイヤーの瞬間的な過剰リクエストを抑える。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	RegisterRate    rate.Limit    // 連携登録のレート（req/sec）
	RegisterBurst   int           // 連携登録のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig は1分あたりの許容リクエスト数からレート制限設定を生成する。
// 連携登録は外部APIの検証呼び出しを伴うため10 req/minに固定する。
func NewRateLimiterConfig(generalPerMinute int) RateLimiterConfig {
	if generalPerMinute <= 0 {
		generalPerMinute = 120
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		RegisterRate:    rate.Limit(10.0 / 60.0),
		RegisterBurst:   10,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般のレート制限と連携登録のレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	general  map[string]*userLimiter
	register map[string]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		general:  make(map[string]*userLimiter),
		register: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある
// （SessionMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, rl.config.GeneralRate, rl.config.GeneralBurst, "general")
}

// RegistrationMiddleware は連携登録専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) RegistrationMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.register, rl.config.RegisterRate, rl.config.RegisterBurst, "registration")
}

// middleware は指定の参照表に対するユーザー別レート制限ミドルウェアを生成する。
func (rl *RateLimiter) middleware(limiters map[string]*userLimiter, r rate.Limit, burst int, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID, err := UserIDFromContext(req.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreate(limiters, userID, r, burst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, r)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", limitType),
				)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// getOrCreate はユーザーのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreate(limiters map[string]*userLimiter, userID string, r rate.Limit, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if ul, exists := limiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(r, burst)
	limiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.general) + len(rl.register)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for userID, ul := range rl.general {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.general, userID)
		}
	}
	for userID, ul := range rl.register {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.register, userID)
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "リクエストが多すぎます。しばらく待ってから再度お試しください。",
		"category": "system",
		"action":   "Retry-Afterヘッダーの秒数だけ待ってから再試行してください。",
	})
}
