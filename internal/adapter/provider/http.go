package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hive-corporation/iocagg/internal/core/domain"
)

// Upper bound on how much of an error body is echoed back.
const errorBodyLimit = 200

// get performs one bounded GET. Callers must close the returned body.
func get(ctx context.Context, client *http.Client, url string, timeout time.Duration, headers map[string]string) (io.ReadCloser, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("request to %s failed: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("%w: %d: %s", domain.ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	return resp.Body, cancel, nil
}

func clientOrDefault(client *http.Client) *http.Client {
	if client == nil {
		return http.DefaultClient
	}
	return client
}
