package domain

import (
	"strings"
	"time"
)

type DocumentType string

const (
	TypePrescription     DocumentType = "prescription"
	TypeLabReport        DocumentType = "lab_report"
	TypeImaging          DocumentType = "imaging"
	TypeDischargeSummary DocumentType = "discharge_summary"
	TypeInsurance        DocumentType = "insurance"
	TypeOther            DocumentType = "other"
)

// FolderTypes lists the six fixed folders of the records browser, in display order.
func FolderTypes() []DocumentType {
	return []DocumentType{
		TypePrescription,
		TypeLabReport,
		TypeImaging,
		TypeDischargeSummary,
		TypeInsurance,
		TypeOther,
	}
}

const DefaultTitle = "Untitled Document"

// ExtractionResult is the loosely-typed payload returned by the extraction
// service, validated and trimmed at the boundary. Every field is optional.
type ExtractionResult struct {
	Title        string `json:"title"`
	DocumentType string `json:"document_type"`
	DoctorName   string `json:"doctor_name"`
	RecordDate   string `json:"record_date"`
	Notes        string `json:"notes"`
}

// Normalize trims every field. Defaults are applied later, at record build time.
func (r ExtractionResult) Normalize() ExtractionResult {
	return ExtractionResult{
		Title:        strings.TrimSpace(r.Title),
		DocumentType: strings.TrimSpace(r.DocumentType),
		DoctorName:   strings.TrimSpace(r.DoctorName),
		RecordDate:   strings.TrimSpace(r.RecordDate),
		Notes:        strings.TrimSpace(r.Notes),
	}
}

// EmptyExtraction is the fallback installed when all extraction attempts are
// exhausted: every field empty, never absent.
func EmptyExtraction() ExtractionResult {
	return ExtractionResult{}
}

type DocumentRecord struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Title        string       `json:"title"`
	DocumentURL  string       `json:"document_url"`
	DocumentType DocumentType `json:"document_type"`
	DoctorName   string       `json:"doctor_name"`
	RecordDate   string       `json:"record_date"`
	DateCaptured string       `json:"date_captured"`
	Notes        string       `json:"notes"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewRecordFromExtraction builds the durable record for one processed image.
// Empty title and type fall back to defaults; a non-empty type is stored as
// returned by extraction, without enum re-validation. DateCaptured is the save
// date, not anything read from the document.
func NewRecordFromExtraction(id, userID, documentURL string, res ExtractionResult, now time.Time) DocumentRecord {
	res = res.Normalize()

	title := res.Title
	if title == "" {
		title = DefaultTitle
	}
	docType := res.DocumentType
	if docType == "" {
		docType = string(TypeOther)
	}

	return DocumentRecord{
		ID:           id,
		UserID:       userID,
		Title:        title,
		DocumentURL:  documentURL,
		DocumentType: DocumentType(docType),
		DoctorName:   res.DoctorName,
		RecordDate:   res.RecordDate,
		DateCaptured: now.UTC().Format("2006-01-02"),
		Notes:        res.Notes,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// RecordUpdate is a partial mutation of an existing record; nil fields are
// left untouched.
type RecordUpdate struct {
	Title        *string `json:"title,omitempty"`
	DocumentType *string `json:"document_type,omitempty"`
	DoctorName   *string `json:"doctor_name,omitempty"`
	RecordDate   *string `json:"record_date,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

func (u RecordUpdate) Empty() bool {
	return u.Title == nil && u.DocumentType == nil && u.DoctorName == nil && u.RecordDate == nil && u.Notes == nil
}

// RecordSort is a list ordering parsed from a signed-prefix sort spec,
// e.g. "-created_date" for newest first.
type RecordSort struct {
	Field      string
	Descending bool
}

// DefaultRecordSort matches the records browser: newest created first.
func DefaultRecordSort() RecordSort {
	return RecordSort{Field: "created_date", Descending: true}
}

var sortableFields = map[string]struct{}{
	"created_date": {},
	"record_date":  {},
	"title":        {},
}

// ParseRecordSort accepts a field name with an optional leading '-' for
// descending order. Unknown fields fall back to the default ordering.
func ParseRecordSort(spec string) RecordSort {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultRecordSort()
	}
	sort := RecordSort{Field: spec}
	if strings.HasPrefix(spec, "-") {
		sort.Field = spec[1:]
		sort.Descending = true
	}
	if _, ok := sortableFields[sort.Field]; !ok {
		return DefaultRecordSort()
	}
	return sort
}
