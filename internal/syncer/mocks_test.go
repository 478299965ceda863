package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/socialsync/internal/auth"
	"github.com/hitoshi/socialsync/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockIntegrationRepo はIntegrationRepositoryのモック。
type mockIntegrationRepo struct {
	findByKeyFn             func(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Integration, error)
	findByPlatformAccountFn func(ctx context.Context, platform model.Platform, accountID string) (*model.Integration, error)
	listByUserIDFn          func(ctx context.Context, userID string) ([]*model.Integration, error)
	listAllFn               func(ctx context.Context) ([]*model.Integration, error)
	upsertFn                func(ctx context.Context, integration *model.Integration) error
	updateCredentialsFn     func(ctx context.Context, id, encryptedAccessToken, encryptedRefreshToken string) error
	updateStatusFn          func(ctx context.Context, id string, status model.IntegrationStatus, errorMessage string) error
	deleteFn                func(ctx context.Context, userID string, platform model.Platform, accountID string) error
}

func (m *mockIntegrationRepo) FindByKey(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Integration, error) {
	if m.findByKeyFn != nil {
		return m.findByKeyFn(ctx, userID, platform, accountID)
	}
	return nil, nil
}

func (m *mockIntegrationRepo) FindByPlatformAccount(ctx context.Context, platform model.Platform, accountID string) (*model.Integration, error) {
	if m.findByPlatformAccountFn != nil {
		return m.findByPlatformAccountFn(ctx, platform, accountID)
	}
	return nil, nil
}

func (m *mockIntegrationRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Integration, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockIntegrationRepo) ListAll(ctx context.Context) ([]*model.Integration, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockIntegrationRepo) Upsert(ctx context.Context, integration *model.Integration) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, integration)
	}
	return nil
}

func (m *mockIntegrationRepo) UpdateCredentials(ctx context.Context, id, encryptedAccessToken, encryptedRefreshToken string) error {
	if m.updateCredentialsFn != nil {
		return m.updateCredentialsFn(ctx, id, encryptedAccessToken, encryptedRefreshToken)
	}
	return nil
}

func (m *mockIntegrationRepo) UpdateStatus(ctx context.Context, id string, status model.IntegrationStatus, errorMessage string) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, errorMessage)
	}
	return nil
}

func (m *mockIntegrationRepo) Delete(ctx context.Context, userID string, platform model.Platform, accountID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, platform, accountID)
	}
	return nil
}

// mockSnapshotRepo はSnapshotRepositoryのモック。保存されたスナップショットを記録する。
type mockSnapshotRepo struct {
	mu       sync.Mutex
	upserted []*model.Snapshot
	upsertFn func(ctx context.Context, snapshot *model.Snapshot) error
}

func (m *mockSnapshotRepo) Upsert(ctx context.Context, snapshot *model.Snapshot) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, snapshot)
	return nil
}

func (m *mockSnapshotRepo) ListRange(ctx context.Context, platform model.Platform, accountID, startDate, endDate string) ([]*model.Snapshot, error) {
	return nil, nil
}

func (m *mockSnapshotRepo) DeleteOlderThan(ctx context.Context, date string) (int64, error) {
	return 0, nil
}

// fakeCipher は復号可能性だけを再現するテスト用暗号。"enc:"プレフィックスで暗号化を表す。
type fakeCipher struct{}

func (fakeCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (fakeCipher) Decrypt(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "enc:") {
		return "", fmt.Errorf("invalid ciphertext: %s", encoded)
	}
	return strings.TrimPrefix(encoded, "enc:"), nil
}

// recordingCollector はMetricsCollectorの呼び出しを記録するモック。
type recordingCollector struct {
	mu               sync.Mutex
	syncSuccess      int
	syncFailure      int
	refreshSuccess   int
	refreshFailure   int
	httpStatuses     []int
	snapshotsWritten int
}

func (c *recordingCollector) RecordSyncSuccess(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncSuccess++
}

func (c *recordingCollector) RecordSyncFailure(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncFailure++
}

func (c *recordingCollector) RecordRefreshResult(platform string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.refreshSuccess++
	} else {
		c.refreshFailure++
	}
}

func (c *recordingCollector) RecordPlatformHTTPStatus(platform string, statusCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpStatuses = append(c.httpStatuses, statusCode)
}

func (c *recordingCollector) RecordSyncLatency(platform string, duration time.Duration) {}

func (c *recordingCollector) RecordSnapshotsWritten(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotsWritten += count
}

// mockRefresher はTokenRefresherのモック。
type mockRefresher struct {
	platform  model.Platform
	refreshFn func(ctx context.Context, refreshToken string) (*auth.Token, error)
}

func (m *mockRefresher) Platform() model.Platform {
	return m.platform
}

func (m *mockRefresher) Refresh(ctx context.Context, refreshToken string) (*auth.Token, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return &auth.Token{AccessToken: "new-access-token"}, nil
}

// mockAdapter はAdapterのモック。
type mockAdapter struct {
	platform model.Platform
	lagDays  int
	fetchFn  func(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error)
}

func (m *mockAdapter) Platform() model.Platform { return m.platform }

func (m *mockAdapter) LagDays() int { return m.lagDays }

func (m *mockAdapter) FetchWindow(ctx context.Context, integ *model.Integration, accessToken string, start, end time.Time) (*model.MetricWindow, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, integ, accessToken, start, end)
	}
	return &model.MetricWindow{}, nil
}

// resolvingAdapter は別名解決付きのAdapterモック。
type resolvingAdapter struct {
	mockAdapter
	resolveFn func(ctx context.Context, accountID, accessToken string) (string, error)
}

func (m *resolvingAdapter) ResolveAccountID(ctx context.Context, accountID, accessToken string) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, accountID, accessToken)
	}
	return accountID, nil
}

func activeIntegration(p model.Platform, accountID string) *model.Integration {
	return &model.Integration{
		ID:                    "integ-" + accountID,
		UserID:                "user-1",
		Platform:              p,
		AccountID:             accountID,
		AccountName:           "テストアカウント",
		EncryptedAccessToken:  "enc:access-token",
		EncryptedRefreshToken: "enc:refresh-token",
		Status:                model.IntegrationStatusActive,
	}
}
