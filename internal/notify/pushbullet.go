package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultPushbulletURL = "https://api.pushbullet.com/v2/pushes"

// PushbulletSender pushes notes to the Pushbullet account registered under
// the message's recipient email.
type PushbulletSender struct {
	token   string
	baseURL string
	client  *http.Client
}

type pushbulletRequest struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Email string `json:"email,omitempty"`
}

func NewPushbulletSender(token, baseURL string, timeout time.Duration) (*PushbulletSender, error) {
	if token == "" {
		return nil, fmt.Errorf("pushbullet token is required")
	}
	if baseURL == "" {
		baseURL = defaultPushbulletURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PushbulletSender{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *PushbulletSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	payload, err := json.Marshal(pushbulletRequest{
		Type:  "note",
		Title: msg.Subject,
		Body:  msg.Body,
		Email: msg.To,
	})
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Access-Token", p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
