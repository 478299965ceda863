// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Security
	// TokenEncryptionKey はアクセストークン暗号化用のAES鍵（16/24/32バイト）。
	TokenEncryptionKey string

	// OAuth (トークンリフレッシュ用)
	PinterestAppID     string
	PinterestAppSecret string
	GoogleClientID     string
	GoogleClientSecret string

	// Sync
	SyncMaxLimit      int
	SyncCooldown      time.Duration
	SyncMaxConcurrent int
	SyncInterval      time.Duration

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Retention
	SnapshotRetentionDays int

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TokenEncryptionKey = os.Getenv("TOKEN_ENCRYPTION_KEY")
	if cfg.TokenEncryptionKey == "" {
		missing = append(missing, "TOKEN_ENCRYPTION_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// OAuthクレデンシャルは任意。未設定のプラットフォームは
	// トークンリフレッシュ非対応として扱われる。
	cfg.PinterestAppID = os.Getenv("PINTEREST_APP_ID")
	cfg.PinterestAppSecret = os.Getenv("PINTEREST_APP_SECRET")
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")

	// Optional fields with defaults
	cfg.SyncMaxLimit = getEnvInt("SYNC_MAX_LIMIT", 3)
	cfg.SyncCooldown = getEnvDuration("SYNC_COOLDOWN", 3*time.Hour)
	cfg.SyncMaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", 5)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 6*time.Hour)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.SnapshotRetentionDays = getEnvInt("SNAPSHOT_RETENTION_DAYS", 90)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
