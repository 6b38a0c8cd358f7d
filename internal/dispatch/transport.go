// Package dispatch delivers notifications to contact points with bounded
// retries and a lease that keeps concurrent dispatchers off the same record.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/datatypes"

	"newswatch/internal/models"
)

// Payload is the rendered notification handed to a transport.
type Payload struct {
	NotificationUUID string    `json:"notification_uuid"`
	SignalUUID       string    `json:"signal_uuid"`
	SignalName       string    `json:"signal_name"`
	IssuedAt         time.Time `json:"issued_at"`
	Digest           string    `json:"digest"`
	DigestStatus     string    `json:"digest_status"`
	ArticleCount     int       `json:"article_count"`
}

// Transport sends one payload to one contact point. The contact point's
// settings arrive already decrypted.
type Transport interface {
	Send(ctx context.Context, point models.ContactPoint, payload Payload) error
}

// Registry maps contact point types to transports.
type Registry map[string]Transport

func (r Registry) For(pointType string) (Transport, bool) {
	t, ok := r[strings.ToLower(strings.TrimSpace(pointType))]
	return t, ok
}

// ValidateSettings checks that a contact point carries the keys its transport
// needs. It runs at save time, before values are encrypted at rest.
func ValidateSettings(pointType string, settings map[string]string) error {
	switch strings.ToLower(strings.TrimSpace(pointType)) {
	case models.ContactPointTypeWebhook:
		return validateHTTPURL(settings["url"], "url")
	case models.ContactPointTypeTelegram:
		if strings.TrimSpace(settings["bot_token"]) == "" {
			return errors.New("bot_token required")
		}
		if strings.TrimSpace(settings["chat_id"]) == "" {
			return errors.New("chat_id required")
		}
		return nil
	case models.ContactPointTypeSlack:
		return validateHTTPURL(settings["webhook_url"], "webhook_url")
	default:
		return fmt.Errorf("unsupported contact point type %q", pointType)
	}
}

func validateHTTPURL(raw, key string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New(key + " required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(key + " must be an http(s) url")
	}
	return nil
}

func decodeSettings(raw datatypes.JSON) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func renderText(p Payload) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s\n%s\n", p.SignalName, p.Digest)
	fmt.Fprintf(b, "articles: %d, issued %s", p.ArticleCount, p.IssuedAt.UTC().Format(time.RFC3339))
	return b.String()
}
