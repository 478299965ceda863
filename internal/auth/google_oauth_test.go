package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGoogleTestRefresher(srv *httptest.Server) *GoogleRefresher {
	r := NewGoogleRefresher(srv.Client(), discardLogger(), "client-id", "client-secret")
	r.config.Endpoint.TokenURL = srv.URL
	return r
}

func TestGoogleRefresher_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("フォームの解析に失敗: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type=refresh_tokenであるべき, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	r := newGoogleTestRefresher(srv)
	token, err := r.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("リフレッシュは成功すべき: %v", err)
	}
	if token.AccessToken != "new-access" {
		t.Errorf("新しいアクセストークンを返すべき, got %q", token.AccessToken)
	}
}

func TestGoogleRefresher_Refresh_InvalidGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	}))
	defer srv.Close()

	r := newGoogleTestRefresher(srv)
	if _, err := r.Refresh(context.Background(), "revoked"); err == nil {
		t.Error("失効したリフレッシュトークンはエラーを返すべき")
	}
}
