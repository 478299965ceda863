package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/syncer"
	"github.com/hitoshi/socialsync/internal/worker/syncjob"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockGate はGateAdmitterのモック。
type mockGate struct {
	admitFn func(state *model.SyncStatus) (*model.SyncStatus, error)
}

func (m *mockGate) Admit(state *model.SyncStatus) (*model.SyncStatus, error) {
	if m.admitFn != nil {
		return m.admitFn(state)
	}
	next := *state
	next.SyncCount++
	return &next, nil
}

// mockStatusStore はSyncStatusStoreのモック。
type mockStatusStore struct {
	findFn func(ctx context.Context, scope string) (*model.SyncStatus, error)
	saveFn func(ctx context.Context, status *model.SyncStatus) error
}

func (m *mockStatusStore) Find(ctx context.Context, scope string) (*model.SyncStatus, error) {
	if m.findFn != nil {
		return m.findFn(ctx, scope)
	}
	return nil, nil
}

func (m *mockStatusStore) Save(ctx context.Context, status *model.SyncStatus) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, status)
	}
	return nil
}

// mockSubmitter はBatchSubmitterのモック。投入されたタスクを記録する。
type mockSubmitter struct {
	submitted []syncjob.Task
	submitFn  func(task syncjob.Task) bool
}

func (m *mockSubmitter) Submit(task syncjob.Task) bool {
	if m.submitFn != nil {
		return m.submitFn(task)
	}
	m.submitted = append(m.submitted, task)
	return true
}

// mockSyncService はSyncServiceのモック。
type mockSyncService struct {
	syncOneFn     func(ctx context.Context, p model.Platform, accountID string) (*model.Snapshot, error)
	runFullSyncFn func(ctx context.Context, scope string) syncer.Report
}

func (m *mockSyncService) SyncOne(ctx context.Context, p model.Platform, accountID string) (*model.Snapshot, error) {
	if m.syncOneFn != nil {
		return m.syncOneFn(ctx, p, accountID)
	}
	return &model.Snapshot{Platform: p, AccountID: accountID}, nil
}

func (m *mockSyncService) RunFullSync(ctx context.Context, scope string) syncer.Report {
	if m.runFullSyncFn != nil {
		return m.runFullSyncFn(ctx, scope)
	}
	return syncer.Report{}
}

// mockIntegrationStore はIntegrationStoreのモック。
type mockIntegrationStore struct {
	findByKeyFn    func(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Integration, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.Integration, error)
	upsertFn       func(ctx context.Context, integration *model.Integration) error
	deleteFn       func(ctx context.Context, userID string, platform model.Platform, accountID string) error
}

func (m *mockIntegrationStore) FindByKey(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Integration, error) {
	if m.findByKeyFn != nil {
		return m.findByKeyFn(ctx, userID, platform, accountID)
	}
	return nil, nil
}

func (m *mockIntegrationStore) ListByUserID(ctx context.Context, userID string) ([]*model.Integration, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockIntegrationStore) Upsert(ctx context.Context, integration *model.Integration) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, integration)
	}
	return nil
}

func (m *mockIntegrationStore) Delete(ctx context.Context, userID string, platform model.Platform, accountID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, platform, accountID)
	}
	return nil
}

// mockSnapshotFinder はSnapshotFinderのモック。
type mockSnapshotFinder struct {
	listRangeFn func(ctx context.Context, platform model.Platform, accountID, startDate, endDate string) ([]*model.Snapshot, error)
}

func (m *mockSnapshotFinder) ListRange(ctx context.Context, platform model.Platform, accountID, startDate, endDate string) ([]*model.Snapshot, error) {
	if m.listRangeFn != nil {
		return m.listRangeFn(ctx, platform, accountID, startDate, endDate)
	}
	return nil, nil
}

// passthroughCipher はテスト用のTokenCipherService実装。
type passthroughCipher struct{}

func (passthroughCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (passthroughCipher) Decrypt(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "enc:") {
		return "", fmt.Errorf("invalid ciphertext")
	}
	return strings.TrimPrefix(encoded, "enc:"), nil
}

// noopSanitizer はテスト用のNameSanitizerService実装。
type noopSanitizer struct{}

func (noopSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(raw)
}

// authedRequest は認証済みユーザーのリクエストを生成する。
func authedRequest(method, target, userID string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// withURLParams はchiのURLパラメータをリクエストへ注入する。
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
