package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Telegram delivers notifications through the Telegram Bot API.
// The chat id for a user is resolved by the caller-supplied lookup,
// since the engine only knows internal user ids.
type Telegram struct {
	apiURL     string
	token      string
	client     *http.Client
	resolve    func(ctx context.Context, n Notification) (chatID string, err error)
	messageFor func(n Notification) string
}

// NewTelegram creates a Telegram notifier. resolve maps a notification
// to a chat id; messageFor renders the message text (nil uses a default).
func NewTelegram(token string, resolve func(ctx context.Context, n Notification) (string, error), messageFor func(n Notification) string) *Telegram {
	if messageFor == nil {
		messageFor = defaultMessage
	}
	return &Telegram{
		apiURL:     "https://api.telegram.org/bot",
		token:      token,
		client:     &http.Client{},
		resolve:    resolve,
		messageFor: messageFor,
	}
}

// defaultMessage renders the standard "profile updated" text.
func defaultMessage(n Notification) string {
	return fmt.Sprintf("Your %s profile has been updated (based on %d observations).",
		strings.ReplaceAll(n.Kind.String(), "_", " "), n.EvidenceCount)
}

// Notify sends one message. Non-2xx responses are errors so the
// dispatcher can retry.
func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	chatID, err := t.resolve(ctx, n)
	if err != nil {
		return fmt.Errorf("resolving chat id: %w", err)
	}

	form := url.Values{
		"chat_id":    {chatID},
		"text":       {t.messageFor(n)},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.apiURL+t.token+"/sendMessage",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, body)
	}
	return nil
}
