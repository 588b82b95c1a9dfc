package botapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/matcha/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestSendMessage は正しいエンドポイントとペイロードでメッセージが送られることをテストする。
func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), testLogger(), ts.URL, "TOKEN")

	if err := client.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotPayload["chat_id"] != float64(42) || gotPayload["text"] != "hello" {
		t.Errorf("unexpected payload: %v", gotPayload)
	}
}

// TestCall_APIError はok=falseレスポンスがエラーになることをテストする。
func TestCall_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), testLogger(), ts.URL, "TOKEN")

	err := client.SendMessage(context.Background(), 42, "hello")
	if err == nil {
		t.Fatal("expected error for ok=false response")
	}
}

// TestAnswerPreCheckoutQuery は事前確認応答のペイロードをテストする。
func TestAnswerPreCheckoutQuery(t *testing.T) {
	var gotPayload map[string]interface{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), testLogger(), ts.URL, "TOKEN")

	if err := client.AnswerPreCheckoutQuery(context.Background(), "q1", false, "out of stock"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPayload["pre_checkout_query_id"] != "q1" {
		t.Errorf("unexpected query id: %v", gotPayload["pre_checkout_query_id"])
	}
	if gotPayload["ok"] != false {
		t.Errorf("expected ok=false, got %v", gotPayload["ok"])
	}
	if gotPayload["error_message"] != "out of stock" {
		t.Errorf("unexpected error_message: %v", gotPayload["error_message"])
	}
}

// TestNotifyMatch は相手の表示名を含む通知が相手ではなく本人に送られることをテストする。
func TestNotifyMatch(t *testing.T) {
	var gotPayload map[string]interface{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), testLogger(), ts.URL, "TOKEN")

	to := &model.User{TgID: 1, FirstName: "Ann"}
	with := &model.User{TgID: 2, FirstName: "Bob", Username: "bob99"}

	if err := client.NotifyMatch(context.Background(), to, with); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPayload["chat_id"] != float64(1) {
		t.Errorf("expected notification to chat 1, got %v", gotPayload["chat_id"])
	}
	text, _ := gotPayload["text"].(string)
	if !strings.Contains(text, "Bob") || !strings.Contains(text, "@bob99") {
		t.Errorf("unexpected notification text: %q", text)
	}
}

// TestNewClient_DefaultBaseURL は空のbaseURLに標準エンドポイントが使われることをテストする。
func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := NewClient(http.DefaultClient, testLogger(), "", "TOKEN")
	if client.baseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", client.baseURL)
	}
}
