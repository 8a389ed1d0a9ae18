package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPStatusError carries the upstream status code so the caller can decide
// whether a failed call is worth retrying.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("inference %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (c *Client) postJSON(ctx context.Context, path string, request, response any, operation string) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("inference %s: marshal request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("inference %s: build request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("inference %s: read response: %w", operation, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{Operation: operation, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("inference %s: decode response: %w", operation, err)
	}
	return nil
}
