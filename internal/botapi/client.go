// Package botapi はTelegram Bot APIの呼び出しを提供する。
// マッチ成立通知の送信、Stars決済の事前確認応答、Webhook登録を含む。
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/matcha/internal/model"
)

// DefaultBaseURL はTelegram Bot APIの標準エンドポイント。
const DefaultBaseURL = "https://api.telegram.org"

// Client はTelegram Bot APIのクライアント。
// 全てのメソッドはPOST {base}/bot{token}/{method} にJSONを送る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	token      string
}

// NewClient はClient の新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使う。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		token:      token,
	}
}

// apiResponse はBot APIの共通レスポンス形式。
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// call はBot APIのメソッドを呼び出し、okフィールドを確認する。
func (c *Client) call(ctx context.Context, method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("bot api call failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}

	if !result.OK {
		c.logger.Error("bot api returned an error",
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
			slog.String("description", result.Description),
		)
		return fmt.Errorf("%s returned an error: %s", method, result.Description)
	}

	return nil
}

// SendMessage はチャットにテキストメッセージを送信する。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
}

// AnswerPreCheckoutQuery はStars決済の事前確認に応答する。
// okがfalseの場合、errorMessageがユーザーに表示される。
func (c *Client) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	payload := map[string]interface{}{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	if !ok && errorMessage != "" {
		payload["error_message"] = errorMessage
	}
	return c.call(ctx, "answerPreCheckoutQuery", payload)
}

// SetWebhook はBot APIのWebhook URLを登録する。
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	return c.call(ctx, "setWebhook", map[string]interface{}{
		"url": webhookURL,
	})
}

// NotifyMatch はマッチ成立をtoのチャットに通知する。
// 表示名は相手のFirstName（あればUsernameを併記）を使う。
func (c *Client) NotifyMatch(ctx context.Context, to, with *model.User) error {
	name := with.FirstName
	if with.Username != "" {
		name = fmt.Sprintf("%s (@%s)", name, with.Username)
	}
	text := fmt.Sprintf("It's a match! You and %s liked each other.", name)
	return c.SendMessage(ctx, to.TgID, text)
}
