package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/medsync/medsync-server/internal/core/domain"
)

type stubRecords struct {
	records []domain.DocumentRecord
}

func (s *stubRecords) Create(_ context.Context, _ *domain.DocumentRecord) error { return nil }

func (s *stubRecords) GetByID(_ context.Context, _, _ string) (*domain.DocumentRecord, error) {
	return nil, domain.ErrRecordNotFound
}

func (s *stubRecords) List(_ context.Context, _ string, _ domain.RecordSort) ([]domain.DocumentRecord, error) {
	return s.records, nil
}

func (s *stubRecords) Update(_ context.Context, _, _ string, _ domain.RecordUpdate) (*domain.DocumentRecord, error) {
	return nil, domain.ErrRecordNotFound
}

func TestExportXLSXWritesRecordRows(t *testing.T) {
	now := time.Now().UTC()
	svc := NewService(&stubRecords{records: []domain.DocumentRecord{
		{
			ID: "rec-1", UserID: "user-1", Title: "Blood Test Results",
			DocumentType: domain.TypeLabReport, DoctorName: "Dr. Rao",
			RecordDate: "2026-01-15", DateCaptured: "2026-02-01",
			Notes: "CBC normal", DocumentURL: "http://cdn/doc1.jpg",
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "rec-2", UserID: "user-1", Title: "Untitled Document",
			DocumentType: domain.TypeOther, DateCaptured: "2026-02-02",
			CreatedAt: now, UpdatedAt: now,
		},
	}}, nil)

	payload, err := svc.ExportXLSX(context.Background(), domain.Session{User: domain.User{ID: "user-1"}})
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Medical Records")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Title" || rows[1][0] != "Blood Test Results" {
		t.Fatalf("unexpected cells: %v", rows[:2])
	}
	if rows[2][1] != "other" {
		t.Fatalf("expected document type in column B, got %q", rows[2][1])
	}
}
