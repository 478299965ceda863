package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/socialsync/internal/middleware"
	"github.com/hitoshi/socialsync/internal/model"
	"github.com/hitoshi/socialsync/internal/security"
	"github.com/hitoshi/socialsync/internal/worker/syncjob"
)

// IntegrationStore は連携ハンドラーが必要とする永続化インターフェース。
// repository.IntegrationRepositoryの部分集合として定義する。
type IntegrationStore interface {
	FindByKey(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Integration, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.Integration, error)
	Upsert(ctx context.Context, integration *model.Integration) error
	Delete(ctx context.Context, userID string, platform model.Platform, accountID string) error
}

// IntegrationHandler は連携アカウント管理のHTTPハンドラー。
type IntegrationHandler struct {
	store     IntegrationStore
	cipher    security.TokenCipherService
	sanitizer security.NameSanitizerService
	executor  BatchSubmitter
	service   SyncService
	logger    *slog.Logger
}

// NewIntegrationHandler はIntegrationHandlerを生成する。
func NewIntegrationHandler(
	store IntegrationStore,
	cipher security.TokenCipherService,
	sanitizer security.NameSanitizerService,
	executor BatchSubmitter,
	service SyncService,
	logger *slog.Logger,
) *IntegrationHandler {
	return &IntegrationHandler{
		store:     store,
		cipher:    cipher,
		sanitizer: sanitizer,
		executor:  executor,
		service:   service,
		logger:    logger,
	}
}

// registerIntegrationRequest は連携登録リクエストのボディ。
type registerIntegrationRequest struct {
	Platform     string            `json:"platform"`
	AccountID    string            `json:"account_id"`
	AccountName  string            `json:"account_name"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	Metadata     map[string]string `json:"metadata"`
}

// integrationResponse は連携情報のAPIレスポンス。トークンは含めない。
type integrationResponse struct {
	ID              string            `json:"id"`
	Platform        string            `json:"platform"`
	AccountID       string            `json:"account_id"`
	AccountName     string            `json:"account_name"`
	Status          string            `json:"status"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	HasRefreshToken bool              `json:"has_refresh_token"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

// toIntegrationResponse は連携をトークンを除いたAPIレスポンス形式へ変換する。
func toIntegrationResponse(integ *model.Integration) integrationResponse {
	return integrationResponse{
		ID:              integ.ID,
		Platform:        string(integ.Platform),
		AccountID:       integ.AccountID,
		AccountName:     integ.AccountName,
		Status:          string(integ.Status),
		ErrorMessage:    integ.ErrorMessage,
		HasRefreshToken: integ.EncryptedRefreshToken != "",
		Metadata:        integ.Metadata,
		CreatedAt:       integ.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       integ.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Register は連携アカウントを登録する。
// トークンは暗号化して保存し、登録直後にベストエフォートの初回同期を
// バックグラウンドで実行する。
// POST /api/integrations
func (h *IntegrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req registerIntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	p, err := model.ParsePlatform(req.Platform)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(req.Platform))
		return
	}
	if req.AccessToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewEmptyAccessTokenError())
		return
	}
	if req.AccountID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "アカウントIDが指定されていません。",
			Category: "validation",
			Action:   "account_idを指定してください。",
		})
		return
	}

	encryptedAccess, err := h.cipher.Encrypt(req.AccessToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	var encryptedRefresh string
	if req.RefreshToken != "" {
		encryptedRefresh, err = h.cipher.Encrypt(req.RefreshToken)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}

	now := time.Now()
	integ := &model.Integration{
		ID:                    uuid.NewString(),
		UserID:                userID,
		Platform:              p,
		AccountID:             req.AccountID,
		AccountName:           h.sanitizer.Sanitize(req.AccountName),
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		Status:                model.IntegrationStatusActive,
		Metadata:              req.Metadata,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := h.store.Upsert(r.Context(), integ); err != nil {
		handleServiceError(w, err)
		return
	}

	// 初回同期はベストエフォート。失敗してもログにのみ残る。
	platformName := string(p)
	accountID := req.AccountID
	h.executor.Submit(syncjob.Task{
		Name: "initial_sync",
		Run: func(ctx context.Context) {
			if _, err := h.service.SyncOne(ctx, p, accountID); err != nil {
				h.logger.Warn("初回同期に失敗しました",
					slog.String("platform", platformName),
					slog.String("account_id", accountID),
					slog.String("error", err.Error()),
				)
			}
		},
	})

	writeJSONResponse(w, http.StatusCreated, toIntegrationResponse(integ))
}

// List はユーザーの連携一覧を返す。
// GET /api/integrations
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	integrations, err := h.store.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]integrationResponse, 0, len(integrations))
	for _, integ := range integrations {
		resp = append(resp, toIntegrationResponse(integ))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"integrations": resp})
}

// Get は連携1件を返す。
// GET /api/integrations/{platform}/{account_id}
func (h *IntegrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	platformParam := chi.URLParam(r, "platform")
	accountID := chi.URLParam(r, "account_id")

	p, err := model.ParsePlatform(platformParam)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(platformParam))
		return
	}

	integ, err := h.store.FindByKey(r.Context(), userID, p, accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if integ == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewIntegrationNotFoundError(platformParam, accountID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toIntegrationResponse(integ))
}

// Delete は連携を削除する。
// DELETE /api/integrations/{platform}/{account_id}
func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	platformParam := chi.URLParam(r, "platform")
	accountID := chi.URLParam(r, "account_id")

	p, err := model.ParsePlatform(platformParam)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(platformParam))
		return
	}

	integ, err := h.store.FindByKey(r.Context(), userID, p, accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if integ == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewIntegrationNotFoundError(platformParam, accountID))
		return
	}

	if err := h.store.Delete(r.Context(), userID, p, accountID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
