package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"newswatch/internal/models"
)

type SlackTransport struct {
	HTTP *http.Client
}

func (t SlackTransport) Send(ctx context.Context, point models.ContactPoint, payload Payload) error {
	settings, err := decodeSettings(point.Settings)
	if err != nil {
		return err
	}
	url := strings.TrimSpace(settings["webhook_url"])
	if url == "" {
		return errors.New("slack webhook_url missing")
	}
	msg := slack.WebhookMessage{Text: renderText(payload)}
	if t.HTTP != nil {
		return slack.PostWebhookCustomHTTPContext(ctx, url, t.HTTP, &msg)
	}
	return slack.PostWebhookContext(ctx, url, &msg)
}
