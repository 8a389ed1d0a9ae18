package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
	"github.com/medsync/medsync-server/internal/infrastructure/resilience"
)

// ProcessImageUseCase is the upload/extract operation for one image:
// promote the staged blob to permanent storage, extract metadata with a
// bounded retry, normalize, persist. Strictly sequential, never parallel
// within one item.
type ProcessImageUseCase struct {
	records   ports.RecordRepository
	storage   ports.ObjectStorage
	extractor ports.DocumentExtractor
	executor  *resilience.Executor

	now   func() time.Time
	newID func() string
}

func NewProcessImageUseCase(
	records ports.RecordRepository,
	storage ports.ObjectStorage,
	extractor ports.DocumentExtractor,
	executor *resilience.Executor,
) *ProcessImageUseCase {
	return &ProcessImageUseCase{
		records:   records,
		storage:   storage,
		extractor: extractor,
		executor:  executor,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Process runs the full pipeline for one staged image and returns the
// persisted record. Upload and persistence failures are fatal for the item;
// extraction exhaustion is absorbed into empty-field defaults.
func (uc *ProcessImageUseCase) Process(ctx context.Context, userID string, img domain.SourceImage) (*domain.DocumentRecord, error) {
	recordID := uc.newID()

	documentURL, err := uc.upload(ctx, recordID, img)
	if err != nil {
		return nil, err
	}

	fields := uc.extractWithFallback(ctx, documentURL)

	rec := domain.NewRecordFromExtraction(recordID, userID, documentURL, fields, uc.now())
	if err := uc.records.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	return &rec, nil
}

// Upload promotes a staged image without extracting; the review flow uses it
// before presenting the editable form.
func (uc *ProcessImageUseCase) Upload(ctx context.Context, img domain.SourceImage) (string, error) {
	return uc.upload(ctx, uc.newID(), img)
}

// Extract runs the bounded-retry extraction with the empty-default fallback.
func (uc *ProcessImageUseCase) Extract(ctx context.Context, documentURL string) domain.ExtractionResult {
	return uc.extractWithFallback(ctx, documentURL)
}

func (uc *ProcessImageUseCase) upload(ctx context.Context, recordID string, img domain.SourceImage) (string, error) {
	permanentKey := path.Join("documents", recordID+"_"+path.Base(img.Filename))
	url, err := uc.storage.Promote(ctx, img.StagingKey, permanentKey, img.ContentType)
	if err != nil {
		return "", domain.WrapError(domain.ErrUploadFailed, "upload document image", err)
	}
	return url, nil
}

// extractWithFallback invokes the extraction service with up to three
// attempts. Exhaustion does not fail the pipeline: the record is still
// produced with every field empty.
func (uc *ProcessImageUseCase) extractWithFallback(ctx context.Context, documentURL string) domain.ExtractionResult {
	var fields domain.ExtractionResult
	err := uc.executor.Execute(ctx, "llm.extract", func(callCtx context.Context) error {
		res, callErr := uc.extractor.ExtractDocument(callCtx, documentURL)
		if callErr != nil {
			return callErr
		}
		fields = res
		return nil
	}, classifyExtractionAttempt)
	if err != nil {
		slog.Warn("extraction_exhausted",
			"document_url", documentURL,
			"max_attempts", uc.executor.MaxAttempts(),
			"error", domain.WrapError(domain.ErrExtractionExhausted, "llm.extract", err),
		)
		return domain.EmptyExtraction()
	}
	return fields.Normalize()
}

// classifyExtractionAttempt retries every failure mode of the inference call
// except a cancelled caller: any exception or malformed response counts as a
// failed attempt.
func classifyExtractionAttempt(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
