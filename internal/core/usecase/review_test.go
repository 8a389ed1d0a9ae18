package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
)

func newReviewFixture(extractor *scriptedExtractor) (*ReviewUseCase, *memRecordRepo, *memStorage) {
	records := newMemRecordRepo()
	storage := newMemStorage()
	processor := NewProcessImageUseCase(records, storage, extractor, fastExecutor(3))
	processor.newID = sequentialIDs("rec")

	uc := NewReviewUseCase(records, processor)
	uc.newID = sequentialIDs("saved")
	uc.now = func() time.Time { return time.Date(2026, 5, 21, 9, 0, 0, 0, time.UTC) }
	return uc, records, storage
}

func TestStartPrefillsDraftFromExtraction(t *testing.T) {
	uc, _, storage := newReviewFixture(&scriptedExtractor{script: []func() (domain.ExtractionResult, error){
		extractOK(domain.ExtractionResult{Title: "MRI Report", DocumentType: "imaging"}),
	}})
	sess := domain.Session{User: domain.User{ID: "user-1"}}

	draft, err := uc.Start(context.Background(), sess, stagedImage(storage, "staging/a"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if draft.Fields.Title != "MRI Report" || draft.Fields.DocumentType != "imaging" {
		t.Fatalf("draft not pre-filled: %+v", draft.Fields)
	}
	if draft.DocumentURL == "" {
		t.Fatal("draft must carry the uploaded document url")
	}
}

func TestStartExhaustionReturnsEditableEmptyDraft(t *testing.T) {
	uc, _, storage := newReviewFixture(&scriptedExtractor{script: []func() (domain.ExtractionResult, error){
		extractFail(errors.New("model down")),
	}})
	sess := domain.Session{User: domain.User{ID: "user-1"}}

	draft, err := uc.Start(context.Background(), sess, stagedImage(storage, "staging/a"))
	if err != nil {
		t.Fatalf("exhaustion must not block the review flow: %v", err)
	}
	if draft.Fields != (domain.ExtractionResult{}) {
		t.Fatalf("expected empty fields, got %+v", draft.Fields)
	}
	if draft.DocumentURL == "" {
		t.Fatal("upload must still have happened")
	}
}

func TestConfirmPersistsEditedDraftWithoutReupload(t *testing.T) {
	uc, records, _ := newReviewFixture(&scriptedExtractor{script: []func() (domain.ExtractionResult, error){
		extractOK(domain.ExtractionResult{}),
	}})
	sess := domain.Session{User: domain.User{ID: "user-1"}}

	rec, err := uc.Confirm(context.Background(), sess, ports.ReviewDraft{
		Fields:      domain.ExtractionResult{Title: "Corrected Title", DocumentType: "lab_report"},
		DocumentURL: "http://cdn.test/documents/rec-1_scan.jpg",
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Title != "Corrected Title" || rec.DocumentURL != "http://cdn.test/documents/rec-1_scan.jpg" {
		t.Fatalf("edited draft not persisted verbatim: %+v", rec)
	}
	if rec.DateCaptured != "2026-05-21" {
		t.Fatalf("date captured is the save date, got %q", rec.DateCaptured)
	}
	if _, ok := records.records[rec.ID]; !ok {
		t.Fatal("record not stored")
	}
}

func TestConfirmClearedFieldsFallBackToDefaults(t *testing.T) {
	uc, _, _ := newReviewFixture(&scriptedExtractor{script: []func() (domain.ExtractionResult, error){
		extractOK(domain.ExtractionResult{}),
	}})
	sess := domain.Session{User: domain.User{ID: "user-1"}}

	rec, err := uc.Confirm(context.Background(), sess, ports.ReviewDraft{
		Fields:      domain.ExtractionResult{Title: "   "},
		DocumentURL: "http://cdn.test/documents/x.jpg",
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Title != domain.DefaultTitle || rec.DocumentType != domain.TypeOther {
		t.Fatalf("cleared fields should default at save, got %+v", rec)
	}
}

func TestConfirmRequiresDocumentURL(t *testing.T) {
	uc, _, _ := newReviewFixture(&scriptedExtractor{script: []func() (domain.ExtractionResult, error){
		extractOK(domain.ExtractionResult{}),
	}})

	_, err := uc.Confirm(context.Background(), domain.Session{User: domain.User{ID: "user-1"}}, ports.ReviewDraft{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
