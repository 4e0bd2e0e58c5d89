// Package notify forwards banner messages raised by apps to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Notifier posts banners to one ntfy endpoint.
type Notifier struct {
	endpoint string
	client   *http.Client
}

// New returns a Notifier for endpoint. A nil client uses http.DefaultClient.
func New(endpoint string, client *http.Client) *Notifier {
	return &Notifier{endpoint: endpoint, client: client}
}

// Send posts message with title to the configured endpoint.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	return Send(ctx, n.client, n.endpoint, title, message)
}

// Send posts a message to endpoint. A non-empty title is sent in the ntfy
// Title header.
func Send(ctx context.Context, client *http.Client, endpoint, title, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
