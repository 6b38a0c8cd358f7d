package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newswatch/internal/models"
)

type TelegramTransport struct {
	HTTP *http.Client

	// BaseURL overrides the Telegram API host, for tests.
	BaseURL string
}

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (t TelegramTransport) Send(ctx context.Context, point models.ContactPoint, payload Payload) error {
	settings, err := decodeSettings(point.Settings)
	if err != nil {
		return err
	}
	botToken := strings.TrimSpace(settings["bot_token"])
	chatID := strings.TrimSpace(settings["chat_id"])
	if botToken == "" || chatID == "" {
		return fmt.Errorf("missing bot_token/chat_id")
	}
	base := strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", base, url.PathEscape(botToken))
	b, err := json.Marshal(telegramSendMessageRequest{ChatID: chatID, Text: renderText(payload)})
	if err != nil {
		return err
	}
	client := t.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http %d", resp.StatusCode)
	}
	return nil
}
