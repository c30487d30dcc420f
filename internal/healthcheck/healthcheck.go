// Package healthcheck implements the container liveness probe used by
// cmd/healthcheck: GET the /health endpoint and succeed only on 200.
package healthcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultURL is the endpoint probed by the container health check.
	DefaultURL = "http://localhost:8080/health"
	// DefaultTimeout bounds the whole request, including reading the body.
	DefaultTimeout = 5 * time.Second
)

// Check issues GET url and returns nil if and only if the response status
// is 200.
func Check(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("healthcheck: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ExitCode maps a Check result onto the process exit status.
func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
