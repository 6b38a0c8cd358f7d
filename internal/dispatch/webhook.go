package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newswatch/internal/models"
)

type WebhookTransport struct {
	HTTP *http.Client
}

func (t WebhookTransport) Send(ctx context.Context, point models.ContactPoint, payload Payload) error {
	settings, err := decodeSettings(point.Settings)
	if err != nil {
		return err
	}
	url := strings.TrimSpace(settings["url"])
	if url == "" {
		return errors.New("webhook url missing")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	client := t.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(settings["auth_token"]); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook http %d", resp.StatusCode)
	}
	return nil
}
