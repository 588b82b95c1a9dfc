package security

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// roundTripFunc はhttp.RoundTripperを関数として実装する。
type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// stubbedGuard は到達性確認のHTTPクライアントを固定ステータスの
// スタブに差し替えたガードを返す。送信されたリクエストはcapturedに格納される。
func stubbedGuard(status int, captured **http.Request) *photoURLGuard {
	guard := NewPhotoURLGuard()
	guard.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if captured != nil {
				*captured = req
			}
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(strings.NewReader("")),
				Request:    req,
			}, nil
		}),
	}
	return guard
}

// TestNewPhotoURLGuard はPhotoURLGuardの生成をテストする。
func TestNewPhotoURLGuard(t *testing.T) {
	guard := NewPhotoURLGuard()
	if guard == nil {
		t.Fatal("NewPhotoURLGuard() returned nil")
	}
}

// TestNewSafeClient はSSRF防止付きHTTPクライアントの生成をテストする。
func TestNewSafeClient(t *testing.T) {
	guard := NewPhotoURLGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport for dialer-level IP validation")
	}
}

// TestValidatePhotoURL_Allowed は正当な写真URLが通過することをテストする。
func TestValidatePhotoURL_Allowed(t *testing.T) {
	guard := NewPhotoURLGuard()

	urls := []string{
		"https://cdn.example.com/photos/42.jpg",
		"https://t.me/i/userpic/320/abc.jpg",
	}
	for _, u := range urls {
		if err := guard.ValidatePhotoURL(u); err != nil {
			t.Errorf("ValidatePhotoURL(%q) = %v, want nil", u, err)
		}
	}
}

// TestVerifyPhotoURL_Reachable は到達可能な正当URLが通過することをテストする。
func TestVerifyPhotoURL_Reachable(t *testing.T) {
	var captured *http.Request
	guard := stubbedGuard(http.StatusOK, &captured)

	if err := guard.VerifyPhotoURL(context.Background(), "https://cdn.example.com/photos/42.jpg"); err != nil {
		t.Fatalf("VerifyPhotoURL() = %v, want nil", err)
	}
	if captured == nil {
		t.Fatal("expected a verification request to be sent")
	}
	if captured.Method != http.MethodHead {
		t.Errorf("expected HEAD request, got %s", captured.Method)
	}
	if captured.URL.String() != "https://cdn.example.com/photos/42.jpg" {
		t.Errorf("unexpected request URL: %s", captured.URL)
	}
}

// TestVerifyPhotoURL_NonSuccessStatus は2xx以外の応答が拒否されることをテストする。
func TestVerifyPhotoURL_NonSuccessStatus(t *testing.T) {
	guard := stubbedGuard(http.StatusNotFound, nil)

	if err := guard.VerifyPhotoURL(context.Background(), "https://cdn.example.com/gone.jpg"); err == nil {
		t.Error("VerifyPhotoURL() = nil, want error for 404 response")
	}
}

// TestVerifyPhotoURL_BlockedWithoutRequest は静的検証で弾かれるURLに対して
// リクエストが送信されないことをテストする。
func TestVerifyPhotoURL_BlockedWithoutRequest(t *testing.T) {
	var captured *http.Request
	guard := stubbedGuard(http.StatusOK, &captured)

	if err := guard.VerifyPhotoURL(context.Background(), "https://169.254.169.254/latest/meta-data/"); err == nil {
		t.Error("VerifyPhotoURL() = nil, want error for metadata IP")
	}
	if captured != nil {
		t.Error("expected no request for a statically blocked URL")
	}
}

// TestValidatePhotoURL_Blocked は危険なURLが拒否されることをテストする。
func TestValidatePhotoURL_Blocked(t *testing.T) {
	guard := NewPhotoURLGuard()

	urls := []string{
		"",
		"http://cdn.example.com/photo.jpg", // httpsのみ許可
		"javascript:alert(1)",
		"https://localhost/photo.jpg",
		"https://127.0.0.1/photo.jpg",
		"https://10.0.0.5/photo.jpg",
		"https://192.168.1.1/photo.jpg",
		"https://169.254.169.254/latest/meta-data/",
		"https://[::1]/photo.jpg",
		"https:///photo.jpg", // 空ホスト
	}
	for _, u := range urls {
		if err := guard.ValidatePhotoURL(u); err == nil {
			t.Errorf("ValidatePhotoURL(%q) = nil, want error", u)
		}
	}
}
