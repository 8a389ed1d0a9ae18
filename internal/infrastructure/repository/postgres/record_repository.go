package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
)

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `id, user_id, title, document_url, document_type, doctor_name, record_date, date_captured, notes, created_at, updated_at`

// sortColumns maps API sort fields onto table columns. Anything else has been
// rejected by domain.ParseRecordSort already.
var sortColumns = map[string]string{
	"created_date": "created_at",
	"record_date":  "record_date",
	"title":        "title",
}

func (r *RecordRepository) Create(ctx context.Context, rec *domain.DocumentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_records (
	id, user_id, title, document_url, document_type, doctor_name, record_date, date_captured, notes, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		rec.ID, rec.UserID, rec.Title, rec.DocumentURL, string(rec.DocumentType),
		rec.DoctorName, rec.RecordDate, rec.DateCaptured, rec.Notes, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, userID, id string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM document_records
WHERE user_id = $1 AND id = $2
`, userID, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) List(ctx context.Context, userID string, sort domain.RecordSort) ([]domain.DocumentRecord, error) {
	column, ok := sortColumns[sort.Field]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if sort.Descending {
		direction = "DESC"
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM document_records
WHERE user_id = $1
ORDER BY `+column+` `+direction+`, id ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []domain.DocumentRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Update applies the non-nil patch fields and returns the updated record.
func (r *RecordRepository) Update(ctx context.Context, userID, id string, patch domain.RecordUpdate) (*domain.DocumentRecord, error) {
	assignments := []string{}
	args := []any{userID, id}

	appendSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, strings.TrimSpace(*value))
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	appendSet("title", patch.Title)
	appendSet("document_type", patch.DocumentType)
	appendSet("doctor_name", patch.DoctorName)
	appendSet("record_date", patch.RecordDate)
	appendSet("notes", patch.Notes)

	if len(assignments) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update record", errors.New("empty patch"))
	}

	args = append(args, time.Now().UTC())
	assignments = append(assignments, fmt.Sprintf("updated_at = $%d", len(args)))

	row := r.db.QueryRowContext(ctx, `
UPDATE document_records
SET `+strings.Join(assignments, ", ")+`
WHERE user_id = $1 AND id = $2
RETURNING `+recordColumns+`
`, args...)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "update record", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan updated record: %w", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	var docType string
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Title, &rec.DocumentURL, &docType,
		&rec.DoctorName, &rec.RecordDate, &rec.DateCaptured, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.DocumentType = domain.DocumentType(docType)
	return &rec, nil
}
