package platform

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/socialsync/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func igIntegration(accountID string) *model.Integration {
	return &model.Integration{
		Platform:  model.PlatformInstagram,
		AccountID: accountID,
		Status:    model.IntegrationStatusActive,
	}
}

func newInstagramTestAdapter(srv *httptest.Server) *InstagramAdapter {
	a := NewInstagramAdapter(srv.Client(), discardLogger())
	a.baseURL = srv.URL
	return a
}

func TestInstagramAdapter_FetchWindow(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/17841400000000001":
			w.Write([]byte(`{"followers_count": 1200}`))
		case r.URL.Path == "/17841400000000001/insights" && strings.Contains(r.URL.Query().Get("metric"), "impressions"):
			if r.URL.Query().Get("period") != "day" {
				t.Errorf("period=dayで取得すべき, got %q", r.URL.Query().Get("period"))
			}
			w.Write([]byte(`{"data":[
				{"name":"impressions","values":[{"value":100},{"value":150}]},
				{"name":"reach","values":[{"value":80},{"value":90}]}
			]}`))
		case r.URL.Path == "/17841400000000001/insights":
			w.Write([]byte(`{"data":[{"name":"profile_views","values":[{"value":5},{"value":7}]}]}`))
		case r.URL.Path == "/17841400000000001/media":
			// 2件目は期間外のため除外される
			w.Write([]byte(`{"data":[
				{"like_count":10,"comments_count":2,"timestamp":"2024-06-03T12:00:00+0000"},
				{"like_count":99,"comments_count":99,"timestamp":"2024-05-01T12:00:00+0000"}
			]}`))
		default:
			t.Errorf("予期しないリクエスト: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := newInstagramTestAdapter(srv)
	win, err := a.FetchWindow(context.Background(), igIntegration("17841400000000001"), "token", start, end)
	if err != nil {
		t.Fatalf("取得は成功すべき: %v", err)
	}

	if win.FollowersTotal != 1200 {
		t.Errorf("FollowersTotalは1200であるべき, got %d", win.FollowersTotal)
	}
	if win.ViewsOrganic != 250 {
		t.Errorf("impressionsの日次合計は250であるべき, got %d", win.ViewsOrganic)
	}
	if win.AccountsReached != 170 {
		t.Errorf("reachの日次合計は170であるべき, got %d", win.AccountsReached)
	}
	if win.ProfileVisits != 12 {
		t.Errorf("profile_viewsの日次合計は12であるべき, got %d", win.ProfileVisits)
	}
	if win.Interactions != 12 {
		t.Errorf("期間内メディアのいいね+コメントは12であるべき, got %d", win.Interactions)
	}
}

func TestInstagramAdapter_FetchWindow_AccountNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a := newInstagramTestAdapter(srv)
	win, err := a.FetchWindow(context.Background(), igIntegration("999"), "token",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("アカウント不在はエラーにすべきでない: %v", err)
	}
	if *win != (model.MetricWindow{}) {
		t.Errorf("ゼロ値ウィンドウを返すべき, got %+v", win)
	}
}

func TestInstagramAdapter_FetchWindow_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Error validating access token"}}`))
	}))
	defer srv.Close()

	a := newInstagramTestAdapter(srv)
	_, err := a.FetchWindow(context.Background(), igIntegration("17841400000000001"), "expired",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC))
	if !IsUnauthorized(err) {
		t.Fatalf("401は認証エラーを返すべき, got %v", err)
	}
}

func TestInstagramAdapter_ResolveAccountID_NumericPassthrough(t *testing.T) {
	a := NewInstagramAdapter(http.DefaultClient, discardLogger())
	resolved, err := a.ResolveAccountID(context.Background(), "17841400000000001", "token")
	if err != nil {
		t.Fatalf("数値IDの解決は成功すべき: %v", err)
	}
	if resolved != "17841400000000001" {
		t.Errorf("数値IDはそのまま返すべき, got %q", resolved)
	}
}

func TestInstagramAdapter_ResolveAccountID_Username(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/accounts" {
			t.Errorf("予期しないリクエスト: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[
			{"instagram_business_account":null},
			{"instagram_business_account":{"id":"17841400000000001","username":"My_Shop"}}
		]}`))
	}))
	defer srv.Close()

	a := newInstagramTestAdapter(srv)
	resolved, err := a.ResolveAccountID(context.Background(), "my_shop", "token")
	if err != nil {
		t.Fatalf("ユーザー名解決は成功すべき: %v", err)
	}
	// 大文字小文字は区別しない
	if resolved != "17841400000000001" {
		t.Errorf("IGビジネスアカウントIDへ解決すべき, got %q", resolved)
	}
}

func TestInstagramAdapter_ResolveAccountID_UnknownUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	a := newInstagramTestAdapter(srv)
	if _, err := a.ResolveAccountID(context.Background(), "nobody", "token"); err == nil {
		t.Error("解決できないユーザー名はエラーを返すべき")
	}
}
