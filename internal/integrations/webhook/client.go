package webhook

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

	"github.com/slack-go/slack"

	"modmail-relay/internal/domain"
)

// HTTPStatusError captures a non-2xx response from the destination.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("webhook: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts notifications to chat incoming-webhook endpoints. It makes
// exactly one request per Send.
type Client struct {
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Send delivers n to dest using the payload schema dest.Format selects.
func (c *Client) Send(ctx context.Context, dest domain.Destination, n domain.Notification) error {
	if strings.TrimSpace(dest.URL) == "" {
		return errors.New("webhook: destination URL must not be empty")
	}
	switch dest.Format {
	case domain.FormatSlack:
		return c.sendSlack(ctx, dest.URL, n)
	default:
		return c.sendDiscord(ctx, dest.URL, n)
	}
}

func (c *Client) sendDiscord(ctx context.Context, url string, n domain.Notification) error {
	body, err := json.Marshal(discordPayloadFrom(n))
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	return nil
}

func (c *Client) sendSlack(ctx context.Context, url string, n domain.Notification) error {
	msg := slackMessageFrom(n)
	if err := slack.PostWebhookCustomHTTPContext(ctx, url, c.resolvedHTTPClient(), msg); err != nil {
		return fmt.Errorf("webhook: post slack message: %w", err)
	}
	return nil
}
