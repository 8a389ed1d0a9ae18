package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
)

// ReviewUseCase is the single-document flow: upload, extraction attempt with
// the shared retry bound, then an editable draft the user confirms. The
// uploaded URL is reused at save time, never re-uploaded.
type ReviewUseCase struct {
	records   ports.RecordRepository
	processor *ProcessImageUseCase

	now   func() time.Time
	newID func() string
}

func NewReviewUseCase(records ports.RecordRepository, processor *ProcessImageUseCase) *ReviewUseCase {
	return &ReviewUseCase{
		records:   records,
		processor: processor,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Start uploads the staged image and pre-fills the form from extraction.
// Exhaustion never blocks the user: the draft comes back with empty fields
// and the form is editable either way.
func (uc *ReviewUseCase) Start(ctx context.Context, sess domain.Session, img domain.SourceImage) (*ports.ReviewDraft, error) {
	documentURL, err := uc.processor.Upload(ctx, img)
	if err != nil {
		return nil, err
	}
	fields := uc.processor.Extract(ctx, documentURL)
	return &ports.ReviewDraft{
		Fields:      fields,
		DocumentURL: documentURL,
	}, nil
}

// Confirm persists the (possibly user-edited) draft as a durable record.
func (uc *ReviewUseCase) Confirm(ctx context.Context, sess domain.Session, draft ports.ReviewDraft) (*domain.DocumentRecord, error) {
	if draft.DocumentURL == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm review", fmt.Errorf("document_url is required"))
	}

	rec := domain.NewRecordFromExtraction(uc.newID(), sess.User.ID, draft.DocumentURL, draft.Fields, uc.now())
	if err := uc.records.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	return &rec, nil
}
