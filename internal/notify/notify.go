package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/config"
	"github.com/dgnsrekt/signalfeed/internal/store"
)

// Notifier is the interface for signal creation notifications.
type Notifier interface {
	SignalCreated(ctx context.Context, sig store.Signal) error
}

// Client implements the ntfy notification client.
type Client struct {
	httpClient *http.Client
	server     string
	topic      string
	token      string
	logger     *zap.Logger
}

// NewClient creates a new ntfy client.
func NewClient(cfg *config.ServerConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		server: cfg.NtfyServer,
		topic:  cfg.NtfyTopic,
		token:  cfg.NtfyToken,
		logger: logger,
	}
}

// SignalCreated sends a notification for a newly created signal.
func (c *Client) SignalCreated(ctx context.Context, sig store.Signal) error {
	title := fmt.Sprintf("New Signal: %s", sig.Ticker)
	message := FormatSignalMessage(sig)

	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.server, "/"), c.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Title", title)
	req.Header.Set("Tags", "chart_with_upwards_trend")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification", zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent", zap.Int64("signalID", sig.ID))
	return nil
}

// FormatSignalMessage creates the notification body for a signal.
func FormatSignalMessage(sig store.Signal) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("ID: %d\n", sig.ID))
	sb.WriteString(fmt.Sprintf("Kind: %s\n", sig.Kind))
	if sig.Note != "" {
		sb.WriteString(fmt.Sprintf("Note: %s\n", sig.Note))
	}
	sb.WriteString(fmt.Sprintf("Created: %s", time.UnixMilli(sig.CreatedAt).Format(time.RFC3339)))

	return sb.String()
}

// NoopNotifier is a no-op implementation for when notifications are disabled.
type NoopNotifier struct{}

// SignalCreated is a no-op.
func (n *NoopNotifier) SignalCreated(_ context.Context, _ store.Signal) error {
	return nil
}

// New creates the appropriate notifier based on config.
func New(cfg *config.ServerConfig, logger *zap.Logger) Notifier {
	if !cfg.NtfyEnabled {
		return &NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
