// Package model はドメインモデルを定義する。
package model

import "fmt"

// Platform は連携対象の外部プラットフォームを表す。
type Platform string

const (
	// PlatformInstagram はInstagram（Graph API）。
	PlatformInstagram Platform = "instagram"
	// PlatformFacebook はFacebookページ（Graph API）。
	PlatformFacebook Platform = "facebook"
	// PlatformPinterest はPinterest（API v5）。
	PlatformPinterest Platform = "pinterest"
	// PlatformYouTube はYouTube（Data API + Analytics API）。
	PlatformYouTube Platform = "youtube"
)

// ParsePlatform は文字列をPlatformに変換する。
// 旧データ互換のため "meta" は facebook として扱う。
func ParsePlatform(s string) (Platform, error) {
	switch s {
	case "instagram":
		return PlatformInstagram, nil
	case "facebook", "meta":
		return PlatformFacebook, nil
	case "pinterest":
		return PlatformPinterest, nil
	case "youtube":
		return PlatformYouTube, nil
	default:
		return "", fmt.Errorf("unknown platform: %q", s)
	}
}

// AllPlatforms は対応している全プラットフォームを返す。
func AllPlatforms() []Platform {
	return []Platform{
		PlatformInstagram,
		PlatformFacebook,
		PlatformPinterest,
		PlatformYouTube,
	}
}
