// Package webhook delivers commands to smart-home devices over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lifesync/lifesync/internal/metrics"
)

// SecretHeader carries the per-device shared secret.
const SecretHeader = "X-Device-Secret"

const maxResponseBody = 1 << 20

// StatusError is returned when a device answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device webhook returned %d: %s", e.StatusCode, e.Body)
}

// Client posts JSON commands to device webhook URLs.
type Client struct {
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a webhook client. Requests are not retried.
func NewClient(timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		metrics: m,
		logger:  logger.With("component", "webhook"),
	}
}

// Send POSTs command as JSON to url with the device secret header and returns
// the response body.
func (c *Client) Send(ctx context.Context, url, secret string, command any) ([]byte, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LifeSync-Webhook/1.0")
	req.Header.Set(SecretHeader, secret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveWebhook("error", time.Since(start))
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveWebhook(strconv.Itoa(resp.StatusCode), time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := respBody
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	c.logger.Debug("webhook delivered", "url", url, "status", resp.StatusCode, "duration", time.Since(start))
	return respBody, nil
}

// AsState converts a device response into a JSON document suitable for
// storing as device state. Non-JSON bodies are wrapped as {"response": "..."}.
func AsState(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"response": string(trimmed)})
	return wrapped
}
