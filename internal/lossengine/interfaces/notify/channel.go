package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultService   = "gridloss"
	maxErrorBodySize = 512
)

// ErrEmptyURL is returned when a webhook channel has no endpoint.
var ErrEmptyURL = errors.New("notify: empty webhook url")

// Channel delivers rendered content.
type Channel interface {
	Send(ctx context.Context, content string) error
}

// Alert is the JSON body posted for every notification.
type Alert struct {
	Service string    `json:"service"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sentAt"`
}

// WebhookChannel posts alerts as JSON to an HTTP endpoint.
type WebhookChannel struct {
	url     string
	service string
	headers http.Header
	client  *http.Client
	now     func() time.Time
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithService sets the service name carried in each alert.
func WithService(name string) WebhookOption {
	return func(ch *WebhookChannel) {
		if name = strings.TrimSpace(name); name != "" {
			ch.service = name
		}
	}
}

// WithHeader adds a request header, such as an authorization token.
func WithHeader(key, value string) WebhookOption {
	return func(ch *WebhookChannel) {
		ch.headers.Add(key, value)
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}
	ch := &WebhookChannel{
		url:     url,
		service: defaultService,
		headers: make(http.Header),
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch, nil
}

// Send posts content as an Alert. Non-2xx replies are returned as errors
// carrying the start of the response body.
func (w *WebhookChannel) Send(ctx context.Context, content string) error {
	if w == nil || w.url == "" {
		return ErrEmptyURL
	}
	body, err := json.Marshal(Alert{Service: w.service, Text: content, SentAt: w.now()})
	if err != nil {
		return fmt.Errorf("notify: encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	for key, values := range w.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post alert: %w", err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook replied %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
