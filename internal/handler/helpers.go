// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/socialsync/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidPlatform, model.ErrCodeEmptyAccessToken:
		return http.StatusBadRequest
	case model.ErrCodeIntegrationNotFound:
		return http.StatusNotFound
	case model.ErrCodeSyncLimitReached:
		return http.StatusTooManyRequests
	case model.ErrCodeReconnectRequired:
		return http.StatusConflict
	case model.ErrCodeSyncFailed:
		return http.StatusBadGateway
	case model.ErrCodeUserNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeUnauthorized は認証必須エンドポイントの401レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}
