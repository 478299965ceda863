package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/syncer"
	"github.com/hitoshi/socialsync/internal/worker/syncjob"
)

// GateAdmitter は同期ゲートの許可判定インターフェース。
type GateAdmitter interface {
	// Admit は同期要求を判定し、許可時はカウンタを進めた新しい状態を返す。
	Admit(state *model.SyncStatus) (*model.SyncStatus, error)
}

// SyncStatusStore は同期状態の読み書きインターフェース。
// repository.SyncStatusRepositoryの部分集合として定義する。
type SyncStatusStore interface {
	Find(ctx context.Context, scope string) (*model.SyncStatus, error)
	Save(ctx context.Context, status *model.SyncStatus) error
}

// BatchSubmitter はバックグラウンドタスク投入のインターフェース。
type BatchSubmitter interface {
	Submit(task syncjob.Task) bool
}

// SyncService は同期オーケストレーターのハンドラー向けインターフェース。
type SyncService interface {
	SyncOne(ctx context.Context, p model.Platform, accountID string) (*model.Snapshot, error)
	RunFullSync(ctx context.Context, scope string) syncer.Report
}

// SyncHandler は同期トリガーと同期状態のHTTPハンドラー。
type SyncHandler struct {
	gate       GateAdmitter
	statusRepo SyncStatusStore
	executor   BatchSubmitter
	service    SyncService
	maxLimit   int
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(gate GateAdmitter, statusRepo SyncStatusStore, executor BatchSubmitter, service SyncService, maxLimit int) *SyncHandler {
	return &SyncHandler{
		gate:       gate,
		statusRepo: statusRepo,
		executor:   executor,
		service:    service,
		maxLimit:   maxLimit,
	}
}

// triggerSyncResponse は同期トリガーのレスポンス。
type triggerSyncResponse struct {
	SyncCount    int  `json:"sync_count"`
	LimitReached bool `json:"limit_reached"`
}

// syncStatusResponse は同期状態のレスポンス。
type syncStatusResponse struct {
	SyncCount     int    `json:"sync_count"`
	SyncLimitStat bool   `json:"sync_limit_stat"`
	LastSyncTime  string `json:"last_sync_time,omitempty"`
	MaxLimit      int    `json:"max_limit"`
}

// TriggerSync はユーザースコープのバッチ同期をトリガーする。
// ゲートを通過した場合、進めたカウンタ状態を永続化してから
// バックグラウンド実行器へバッチを投入し、即座に応答を返す。
// POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	status, err := h.statusRepo.Find(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if status == nil {
		status = &model.SyncStatus{Scope: userID}
	}

	admitted, err := h.gate.Admit(status)
	if err != nil {
		var limited *syncer.RateLimitedError
		if errors.As(err, &limited) {
			writeAPIErrorResponse(w, http.StatusTooManyRequests, model.NewSyncLimitReachedError(limited.WaitMinutes))
			return
		}
		handleServiceError(w, err)
		return
	}

	// バッチ起動前に許可済み状態を永続化する
	if err := h.statusRepo.Save(r.Context(), admitted); err != nil {
		handleServiceError(w, err)
		return
	}

	scope := userID
	h.executor.Submit(syncjob.Task{
		Name: "manual_batch_sync",
		Run: func(ctx context.Context) {
			h.service.RunFullSync(ctx, scope)
		},
	})

	writeJSONResponse(w, http.StatusAccepted, triggerSyncResponse{
		SyncCount:    admitted.SyncCount,
		LimitReached: admitted.LimitReached,
	})
}

// GetStatus はユーザースコープの同期カウンタ状態を返す。
// GET /api/sync/status
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	status, err := h.statusRepo.Find(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if status == nil {
		status = &model.SyncStatus{Scope: userID}
	}

	resp := syncStatusResponse{
		SyncCount:     status.SyncCount,
		SyncLimitStat: status.LimitReached,
		MaxLimit:      h.maxLimit,
	}
	if !status.LastSyncAt.IsZero() {
		resp.LastSyncTime = status.LastSyncAt.UTC().Format(time.RFC3339)
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// SyncAccount は単一アカウントをブロッキングで同期する。
// POST /api/sync/{platform}/{account_id}
func (h *SyncHandler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	platformParam := chi.URLParam(r, "platform")
	accountID := chi.URLParam(r, "account_id")

	p, err := model.ParsePlatform(platformParam)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(platformParam))
		return
	}

	snapshot, err := h.service.SyncOne(r.Context(), p, accountID)
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrIntegrationDisconnected) || syncer.IsTerminal(err):
			writeAPIErrorResponse(w, http.StatusConflict, model.NewReconnectRequiredError(string(p), accountID))
		default:
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
				return
			}
			writeAPIErrorResponse(w, http.StatusBadGateway, model.NewSyncFailedError(err.Error()))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, toSnapshotResponse(snapshot))
}
