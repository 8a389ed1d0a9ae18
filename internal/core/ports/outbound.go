package ports

import (
	"context"
	"io"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
)

// RecordRepository persists and reads document records. Every call is scoped
// to one user; there is no cross-user read path.
type RecordRepository interface {
	Create(ctx context.Context, rec *domain.DocumentRecord) error
	GetByID(ctx context.Context, userID, id string) (*domain.DocumentRecord, error)
	List(ctx context.Context, userID string, sort domain.RecordSort) ([]domain.DocumentRecord, error)
	Update(ctx context.Context, userID, id string, patch domain.RecordUpdate) (*domain.DocumentRecord, error)
}

// UserRepository reads and mutates account state.
type UserRepository interface {
	GetByToken(ctx context.Context, token string) (*domain.User, error)
	SetConsent(ctx context.Context, userID string, granted bool, at *time.Time) error
	ClearToken(ctx context.Context, userID string) error
}

// BatchRepository persists batch runs and their per-item progress.
type BatchRepository interface {
	CreateBatch(ctx context.Context, batch *domain.Batch, items []domain.BatchItem) error
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, []domain.BatchItem, error)
	UpdateItemStatus(ctx context.Context, itemID string, from, to domain.BatchItemStatus, errMessage, recordID string) error
	CompleteBatch(ctx context.Context, batchID string, successCount, errorCount int, at time.Time) error
}

// ObjectStorage stores document images. Captures land in a staging area;
// Promote moves a staged blob to its permanent location and returns the
// public document URL.
type ObjectStorage interface {
	Stage(ctx context.Context, key, contentType string, data io.Reader, size int64) error
	Promote(ctx context.Context, stagingKey, permanentKey, contentType string) (string, error)
	Discard(ctx context.Context, stagingKey string) error
}

// DocumentExtractor asks the LLM OCR endpoint for the five metadata fields of
// one uploaded document image.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, documentURL string) (domain.ExtractionResult, error)
}

// RecordMatcher delegates natural-language search to the inference endpoint,
// returning matched record IDs ranked by relevance.
type RecordMatcher interface {
	MatchRecords(ctx context.Context, query string, records []domain.DocumentRecord) ([]string, error)
}

// BatchQueue publishes/consumes batch submission events.
type BatchQueue interface {
	PublishBatchSubmitted(ctx context.Context, batchID string) error
	SubscribeBatchSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}
