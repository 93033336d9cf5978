package apiclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// Ping checks the API health endpoint, which lives beside the /api prefix.
// It bypasses retries and never carries a token.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	target := strings.TrimSuffix(c.baseURL, "/api") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return apperrors.NewNetworkError(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperrors.NewServerError(resp.StatusCode, "health check failed")
	}
	return nil
}
