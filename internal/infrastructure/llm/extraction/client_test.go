package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medsync/medsync-server/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, "test-key", "test-model")
}

func TestExtractDocumentParsesFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		var request struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if request.Messages[0].Content[1].ImageURL.URL != "https://cdn.example/doc.jpg" {
			t.Fatalf("image url not forwarded: %+v", request.Messages[0].Content)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": `{"title":"Blood Test Results","document_type":"lab_report","doctor_name":"Dr. Rao","record_date":"2026-01-15","notes":"CBC normal"}`,
				},
			}},
		})
	})

	result, err := client.ExtractDocument(context.Background(), "https://cdn.example/doc.jpg")
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if result.Title != "Blood Test Results" || result.DocumentType != "lab_report" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExtractDocumentStripsSurroundingText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": "Here you go:\n```json\n{\"title\":\"Rx\",\"document_type\":\"prescription\"}\n```",
				},
			}},
		})
	})

	result, err := client.ExtractDocument(context.Background(), "https://cdn.example/doc.jpg")
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if result.Title != "Rx" || result.DocumentType != "prescription" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExtractDocumentUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.ExtractDocument(context.Background(), "https://cdn.example/doc.jpg")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPStatusError 503, got %v", err)
	}
}

func TestMatchRecordsReturnsIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		prompt := request.Messages[0].Content
		if !containsAll(prompt, "rec-1", "blood pressure") {
			t.Fatalf("prompt missing metadata or query:\n%s", prompt)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": `{"matched_record_ids":["rec-1"]}`},
			}},
		})
	})

	ids, err := client.MatchRecords(context.Background(), "blood pressure", []domain.DocumentRecord{
		{ID: "rec-1", Title: "BP Log", DocumentType: "other"},
	})
	if err != nil {
		t.Fatalf("MatchRecords: %v", err)
	}
	if len(ids) != 1 || ids[0] != "rec-1" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestMatchRecordsEmptyListNotNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": `{"matched_record_ids":[]}`},
			}},
		})
	})

	ids, err := client.MatchRecords(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("MatchRecords: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", ids)
	}
}

func TestMatchRecordsServerErrorIsTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.MatchRecords(context.Background(), "anything", nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
