package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/signalfeed/internal/store"
)

// Client interface for testability
type Client interface {
	ListSignals(ctx context.Context) ([]store.Signal, error)
	GetSignal(ctx context.Context, id int64) (*store.Signal, error)
	CreateSignal(ctx context.Context) (*store.Signal, error)
	TailFeed(ctx context.Context, fn func(store.Signal) error) error
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClient(baseURL string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (c *HTTPClient) ListSignals(ctx context.Context) ([]store.Signal, error) {
	var signals []store.Signal
	if err := c.doJSON(ctx, http.MethodGet, "/signals", &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

func (c *HTTPClient) GetSignal(ctx context.Context, id int64) (*store.Signal, error) {
	var sig store.Signal
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/signals/%d", id), &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (c *HTTPClient) CreateSignal(ctx context.Context) (*store.Signal, error) {
	var sig store.Signal
	if err := c.doJSON(ctx, http.MethodPost, "/signals", &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// doJSON performs a request with rate limiting and retries, decoding the
// response body into out.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, out any) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	url := c.baseURL + path
	c.logger.Debug("requesting", zap.String("method", method), zap.String("url", url))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing for error messages
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = ErrRateLimited
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// TailFeed subscribes to the live SSE feed and calls fn for every delivered
// signal. It returns when the stream completes, fn returns an error, or the
// context is cancelled.
func (c *HTTPClient) TailFeed(ctx context.Context, fn func(store.Signal) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/signals/feed", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The feed is long-lived; the shared client's timeout would cut it off.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("opening feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var sig store.Signal
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &sig); err != nil {
			c.logger.Debug("skipping unparseable frame", zap.Error(err))
			continue
		}

		if err := fn(sig); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("reading feed: %w", err)
	}

	return nil
}
