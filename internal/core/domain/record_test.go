package domain

import (
	"testing"
	"time"
)

func TestNewRecordFromExtractionAppliesDefaults(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 2, 0, time.UTC)

	rec := NewRecordFromExtraction("rec-1", "user-1", "http://cdn/doc.jpg", ExtractionResult{}, now)
	if rec.Title != DefaultTitle {
		t.Fatalf("empty title should default, got %q", rec.Title)
	}
	if rec.DocumentType != TypeOther {
		t.Fatalf("empty type should default to other, got %q", rec.DocumentType)
	}
	if rec.DateCaptured != "2026-03-14" {
		t.Fatalf("date captured must be the save date, got %q", rec.DateCaptured)
	}
	if rec.DoctorName != "" || rec.RecordDate != "" || rec.Notes != "" {
		t.Fatalf("optional fields should stay empty, got %+v", rec)
	}
}

func TestNewRecordFromExtractionKeepsNonEmptyTypeVerbatim(t *testing.T) {
	rec := NewRecordFromExtraction("rec-1", "user-1", "http://cdn/doc.jpg", ExtractionResult{
		Title:        "  X-Ray Left Knee ",
		DocumentType: "radiology_misc",
	}, time.Now())
	if rec.Title != "X-Ray Left Knee" {
		t.Fatalf("title should be trimmed, got %q", rec.Title)
	}
	if rec.DocumentType != "radiology_misc" {
		t.Fatalf("non-empty type is stored as returned, got %q", rec.DocumentType)
	}
}

func TestParseRecordSort(t *testing.T) {
	cases := []struct {
		spec string
		want RecordSort
	}{
		{"", DefaultRecordSort()},
		{"-created_date", RecordSort{Field: "created_date", Descending: true}},
		{"title", RecordSort{Field: "title", Descending: false}},
		{"-record_date", RecordSort{Field: "record_date", Descending: true}},
		{"bogus", DefaultRecordSort()},
		{"-bogus", DefaultRecordSort()},
	}
	for _, tc := range cases {
		if got := ParseRecordSort(tc.spec); got != tc.want {
			t.Fatalf("ParseRecordSort(%q) = %+v, want %+v", tc.spec, got, tc.want)
		}
	}
}

func TestRecordUpdateEmpty(t *testing.T) {
	if !(RecordUpdate{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
	title := "x"
	if (RecordUpdate{Title: &title}).Empty() {
		t.Fatal("patch with a field should not be empty")
	}
}
