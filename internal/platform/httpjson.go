package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxErrorBodySize はエラーレスポンス本文の読み取り上限。
const maxErrorBodySize = 4 * 1024

// getJSON はGETリクエストを実行してJSONレスポンスをoutへ展開する。
// 404はデータ不在としてfound=falseを返す（エラーにしない）。
// 401/403は認証エラー、429/5xxは一時的エラーとして分類する。
func getJSON(ctx context.Context, client *http.Client, platformName, url string, header http.Header, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, NewNetworkError(platformName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return false, ClassifyHTTPStatus(platformName, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("%sレスポンスの解析に失敗しました: %w", platformName, err)
	}
	return true, nil
}

// bearerHeader はBearer認証ヘッダーを生成する。
func bearerHeader(accessToken string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)
	h.Set("Content-Type", "application/json")
	return h
}

// flexInt はAPIが数値・文字列・nullのいずれでも返しうる整数値。
type flexInt int64

// UnmarshalJSON は数値・数値文字列・nullをint64として受け付ける。
func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*f = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("整数値の解析に失敗しました: %q", string(data))
	}
	*f = flexInt(parsed)
	return nil
}
