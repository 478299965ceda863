package model

import "testing"

func TestNewSnapshot_FlatFieldsMirrorPeriod30d(t *testing.T) {
	windows := map[string]MetricWindow{
		RawKeyPeriod7d:       {FollowersTotal: 100, ViewsOrganic: 70},
		RawKeyPeriod7dPrior:  {FollowersTotal: 95, ViewsOrganic: 65},
		RawKeyPeriod30d:      {FollowersTotal: 100, FollowersNew: 8, ViewsOrganic: 300, Interactions: 42, ProfileVisits: 15, AccountsReached: 250, Saves: 7, WatchTimeHours: 12.5},
		RawKeyPeriod30dPrior: {FollowersTotal: 92, ViewsOrganic: 280},
	}

	s := NewSnapshot(PlatformYouTube, "UC123", "2024-06-30", windows)

	if s.Platform != PlatformYouTube || s.AccountID != "UC123" || s.Date != "2024-06-30" {
		t.Errorf("保存キーを設定すべき, got %+v", s)
	}
	if s.FollowersTotal != 100 || s.FollowersNew != 8 {
		t.Errorf("フラットフィールドはperiod_30dを複製すべき, got followers=%d new=%d", s.FollowersTotal, s.FollowersNew)
	}
	if s.ViewsOrganic != 300 || s.AccountsReached != 250 {
		t.Errorf("period_7dではなくperiod_30dの値を使うべき, got views=%d reached=%d", s.ViewsOrganic, s.AccountsReached)
	}
	if s.WatchTimeHours != 12.5 {
		t.Errorf("WatchTimeHoursを複製すべき, got %f", s.WatchTimeHours)
	}
	if len(s.RawMetrics) != 4 {
		t.Errorf("4ウィンドウを保持すべき, got %d", len(s.RawMetrics))
	}
}

func TestNewSnapshot_MissingPeriod30d(t *testing.T) {
	windows := map[string]MetricWindow{
		RawKeyPeriod7d: {FollowersTotal: 100},
	}

	s := NewSnapshot(PlatformInstagram, "acct-1", "2024-06-30", windows)

	// period_30dが無い場合フラットフィールドはゼロ値
	if s.FollowersTotal != 0 || s.ViewsOrganic != 0 {
		t.Errorf("period_30d不在時はゼロ値であるべき, got %+v", s)
	}
}

func TestIntegration_Usable(t *testing.T) {
	active := &Integration{Status: IntegrationStatusActive}
	if !active.Usable() {
		t.Error("ACTIVEの連携は同期対象であるべき")
	}

	disconnected := &Integration{Status: IntegrationStatusDisconnected}
	if disconnected.Usable() {
		t.Error("DISCONNECTEDの連携は同期対象外であるべき")
	}
}
