package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPinterestTestRefresher(srv *httptest.Server) *PinterestRefresher {
	r := NewPinterestRefresher(srv.Client(), discardLogger(), "app-id", "app-secret")
	r.tokenURL = srv.URL
	return r
}

func TestPinterestRefresher_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "app-id" || pass != "app-secret" {
			t.Errorf("アプリ資格情報をBasic認証で送るべき, got %q/%q", user, pass)
		}
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Typeはフォームエンコードであるべき, got %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("フォームの解析に失敗: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type=refresh_tokenであるべき, got %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("リフレッシュトークンを送るべき, got %q", got)
		}
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":2592000}`))
	}))
	defer srv.Close()

	r := newPinterestTestRefresher(srv)
	token, err := r.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("リフレッシュは成功すべき: %v", err)
	}
	if token.AccessToken != "new-access" || token.RefreshToken != "new-refresh" {
		t.Errorf("新しいトークンを返すべき, got %+v", token)
	}
}

func TestPinterestRefresher_Refresh_NoRotatedRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-access"}`))
	}))
	defer srv.Close()

	r := newPinterestTestRefresher(srv)
	token, err := r.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("リフレッシュは成功すべき: %v", err)
	}
	if token.RefreshToken != "" {
		t.Errorf("再発行が無い場合RefreshTokenは空であるべき, got %q", token.RefreshToken)
	}
}

func TestPinterestRefresher_Refresh_InvalidGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token is revoked"}`))
	}))
	defer srv.Close()

	r := newPinterestTestRefresher(srv)
	if _, err := r.Refresh(context.Background(), "revoked"); err == nil {
		t.Error("失効したリフレッシュトークンはエラーを返すべき")
	}
}

func TestPinterestRefresher_Refresh_EmptyAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := newPinterestTestRefresher(srv)
	if _, err := r.Refresh(context.Background(), "old-refresh"); err == nil {
		t.Error("アクセストークンが無いレスポンスはエラーを返すべき")
	}
}
