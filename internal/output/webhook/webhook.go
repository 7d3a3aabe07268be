package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crimson-sun/plantrace/internal/output"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3

	// ArtifactHeader carries the artifact name, e.g. "trace-actions".
	ArtifactHeader = "X-Plantrace-Artifact"
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithTimeout sets the HTTP client timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// WithBackoff sets the delay before the first retry; it doubles per attempt. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// Output POSTs each artifact's trace document to an HTTP endpoint.
// Retries on 5xx with exponential backoff.
type Output struct {
	client  *http.Client
	url     string
	headers map[string]string
	backoff time.Duration
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:  &http.Client{Timeout: defaultTimeout},
		url:     url,
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Write posts the artifact.
func (o *Output) Write(ctx context.Context, a output.Artifact) error {
	body, err := output.Marshal(a, false)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return o.postWithRetry(ctx, a.Name, body)
}

// Close is a no-op; every Write completes its request.
func (o *Output) Close() error {
	return nil
}

func (o *Output) postWithRetry(ctx context.Context, name string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(o.backoff << (attempt - 1)):
			case <-ctx.Done():
				return fmt.Errorf("webhook: %s: %w", name, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ArtifactHeader, name)
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %s: %w", name, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook: %s: HTTP %d", name, resp.StatusCode)

		// Only retry on 5xx server errors.
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
