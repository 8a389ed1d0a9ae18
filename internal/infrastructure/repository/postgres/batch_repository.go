package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
)

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) CreateBatch(ctx context.Context, batch *domain.Batch, items []domain.BatchItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO batches (id, user_id, status, total, success_count, error_count, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		batch.ID, batch.UserID, string(batch.Status), batch.Total,
		batch.SuccessCount, batch.ErrorCount, batch.CreatedAt, batch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
INSERT INTO batch_items (id, batch_id, position, filename, content_type, staging_key, status, error_message, record_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			item.ID, item.BatchID, item.Position, item.Filename, item.ContentType,
			item.StagingKey, string(item.Status), item.ErrorMessage, item.RecordID,
		)
		if err != nil {
			return fmt.Errorf("insert batch item %d: %w", item.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}
	return nil
}

func (r *BatchRepository) GetBatch(ctx context.Context, batchID string) (*domain.Batch, []domain.BatchItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, status, total, success_count, error_count, created_at, completed_at
FROM batches
WHERE id = $1
`, batchID)

	var batch domain.Batch
	var status string
	err := row.Scan(
		&batch.ID, &batch.UserID, &status, &batch.Total,
		&batch.SuccessCount, &batch.ErrorCount, &batch.CreatedAt, &batch.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("id %s", batchID))
		}
		return nil, nil, fmt.Errorf("scan batch: %w", err)
	}
	batch.Status = domain.BatchStatus(status)

	rows, err := r.db.QueryContext(ctx, `
SELECT id, batch_id, position, filename, content_type, staging_key, status, error_message, record_id
FROM batch_items
WHERE batch_id = $1
ORDER BY position ASC
`, batchID)
	if err != nil {
		return nil, nil, fmt.Errorf("list batch items: %w", err)
	}
	defer rows.Close()

	items := []domain.BatchItem{}
	for rows.Next() {
		var item domain.BatchItem
		var itemStatus string
		err := rows.Scan(
			&item.ID, &item.BatchID, &item.Position, &item.Filename, &item.ContentType,
			&item.StagingKey, &itemStatus, &item.ErrorMessage, &item.RecordID,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("scan batch item: %w", err)
		}
		item.Status = domain.BatchItemStatus(itemStatus)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate batch items: %w", err)
	}
	return &batch, items, nil
}

// UpdateItemStatus moves one item strictly from -> to; the WHERE clause on the
// old status makes backward or duplicate transitions a no-op error.
func (r *BatchRepository) UpdateItemStatus(ctx context.Context, itemID string, from, to domain.BatchItemStatus, errMessage, recordID string) error {
	if !from.CanTransition(to) {
		return domain.WrapError(domain.ErrInvalidTransition, "update batch item",
			fmt.Errorf("%s -> %s", from, to))
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE batch_items
SET status = $3, error_message = $4, record_id = $5
WHERE id = $1 AND status = $2
`, itemID, string(from), string(to), errMessage, recordID)
	if err != nil {
		return fmt.Errorf("update batch item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch item rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvalidTransition, "update batch item",
			fmt.Errorf("item %s no longer in status %s", itemID, from))
	}
	return nil
}

// CompleteBatch settles the run exactly once: the status guard means a second
// call changes nothing.
func (r *BatchRepository) CompleteBatch(ctx context.Context, batchID string, successCount, errorCount int, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE batches
SET status = $2, success_count = $3, error_count = $4, completed_at = $5
WHERE id = $1 AND status = $6
`, batchID, string(domain.BatchCompleted), successCount, errorCount, at, string(domain.BatchRunning))
	if err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete batch rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvalidTransition, "complete batch",
			fmt.Errorf("batch %s already completed", batchID))
	}
	return nil
}
