package scoring

import (
	"context"
	"fmt"
	"time"

	"TradeScan/pkg/config"
	xhttp "TradeScan/pkg/http"
)

// ServiceBase centralizes client construction and JSON POST handling
// for the scoring service.
type ServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewServiceBase builds an HTTP client with timeout and base URL from config.
func NewServiceBase(cfg *config.Config) *ServiceBase {
	timeout := cfg.Scoring.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &ServiceBase{
		baseURL: cfg.Scoring.ServiceURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *ServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("scoring http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry posts JSON with up to `attempts` retries for transient errors.
func (b *ServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil {
			return nil
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
