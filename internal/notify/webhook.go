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

type webhookNotifier struct {
	httpClient *http.Client
	url        string
}

func NewWebhookNotifier(url string, timeout time.Duration) Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &webhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

func (n *webhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}

	return nil
}

func (n *webhookNotifier) Close() error {
	n.httpClient.CloseIdleConnections()
	return nil
}
