package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
)

// Client talks to an OpenAI-compatible chat endpoint with vision support. The
// same endpoint serves both document extraction and search matching.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// ExtractDocument asks the model to read one document image and return the
// five metadata fields as a JSON object. Any non-object response is an error;
// the caller owns the retry bound.
func (c *Client) ExtractDocument(ctx context.Context, documentURL string) (domain.ExtractionResult, error) {
	content, err := c.chatJSON(ctx, "extract", []map[string]any{
		{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": extractionPrompt},
				{"type": "image_url", "image_url": map[string]any{"url": documentURL}},
			},
		},
	})
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &result); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("parse extraction json: %w", err)
	}
	return result, nil
}

// MatchRecords sends the user's records and a free-text query to the model
// and returns matched record IDs ranked by relevance.
func (c *Client) MatchRecords(ctx context.Context, query string, records []domain.DocumentRecord) ([]string, error) {
	content, err := c.chatJSON(ctx, "match", []map[string]any{
		{"role": "user", "content": buildSearchPrompt(query, records)},
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("match records", err)
	}

	var result struct {
		MatchedRecordIDs []string `json:"matched_record_ids"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &result); err != nil {
		return nil, fmt.Errorf("parse match json: %w", err)
	}
	if result.MatchedRecordIDs == nil {
		result.MatchedRecordIDs = []string{}
	}
	return result.MatchedRecordIDs, nil
}

func (c *Client) chatJSON(ctx context.Context, operation string, messages []map[string]any) (string, error) {
	request := map[string]any{
		"model":           c.model,
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", request, &response, operation); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("inference %s: empty choices", operation)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
