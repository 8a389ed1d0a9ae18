package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
)

// BatchObserver receives processing telemetry from a batch run. The zero
// observer is a no-op.
type BatchObserver interface {
	StartItem()
	FinishItem(duration time.Duration, err error)
	ObserveBatch(size, errorCount int)
	ObserveQueueLag(lag time.Duration)
}

type noopBatchObserver struct{}

func (noopBatchObserver) StartItem()                      {}
func (noopBatchObserver) FinishItem(time.Duration, error) {}
func (noopBatchObserver) ObserveBatch(int, int)           {}
func (noopBatchObserver) ObserveQueueLag(time.Duration)   {}

// BatchUseCase drives a queue of staged images through the upload/extract
// operation, strictly in submission order, tracking per-item status and
// aggregate counts. One item's failure never halts its siblings.
type BatchUseCase struct {
	batches   ports.BatchRepository
	queue     ports.BatchQueue
	processor *ProcessImageUseCase
	observer  BatchObserver

	now   func() time.Time
	newID func() string
}

// SetObserver installs processing telemetry; call before the worker starts.
func (uc *BatchUseCase) SetObserver(observer BatchObserver) {
	if observer != nil {
		uc.observer = observer
	}
}

func NewBatchUseCase(
	batches ports.BatchRepository,
	queue ports.BatchQueue,
	processor *ProcessImageUseCase,
) *BatchUseCase {
	return &BatchUseCase{
		batches:   batches,
		queue:     queue,
		processor: processor,
		observer:  noopBatchObserver{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Submit persists the batch with every item pending and hands the batch ID to
// the worker queue. Item order is the selection order.
func (uc *BatchUseCase) Submit(ctx context.Context, userID string, images []domain.SourceImage) (*domain.Batch, error) {
	if len(images) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", fmt.Errorf("no images"))
	}

	batch := &domain.Batch{
		ID:        uc.newID(),
		UserID:    userID,
		Status:    domain.BatchRunning,
		Total:     len(images),
		CreatedAt: uc.now().UTC(),
	}
	items := make([]domain.BatchItem, len(images))
	for i, img := range images {
		items[i] = domain.BatchItem{
			ID:          uc.newID(),
			BatchID:     batch.ID,
			Position:    i,
			Filename:    img.Filename,
			ContentType: img.ContentType,
			StagingKey:  img.StagingKey,
			Status:      domain.ItemPending,
		}
	}

	if err := uc.batches.CreateBatch(ctx, batch, items); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	if err := uc.queue.PublishBatchSubmitted(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("publish batch event: %w", err)
	}
	return batch, nil
}

// Run processes one submitted batch sequentially. Each item moves
// pending -> processing -> success|error, and every transition is persisted
// so progress reads are incremental. Completion is recorded exactly once.
func (uc *BatchUseCase) Run(ctx context.Context, batchID string) error {
	batch, items, err := uc.batches.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	if batch.Status != domain.BatchRunning {
		// Redelivered event for an already-settled batch.
		return nil
	}
	uc.observer.ObserveQueueLag(uc.now().Sub(batch.CreatedAt))

	successCount, errorCount := 0, 0
	for _, item := range items {
		if item.Status.Terminal() {
			if item.Status == domain.ItemSuccess {
				successCount++
			} else {
				errorCount++
			}
			continue
		}

		if err := uc.batches.UpdateItemStatus(ctx, item.ID, domain.ItemPending, domain.ItemProcessing, "", ""); err != nil {
			return fmt.Errorf("mark item processing: %w", err)
		}

		uc.observer.StartItem()
		itemStart := uc.now()
		rec, processErr := uc.processor.Process(ctx, batch.UserID, domain.SourceImage{
			ID:          item.ID,
			Filename:    item.Filename,
			ContentType: item.ContentType,
			StagingKey:  item.StagingKey,
		})
		uc.observer.FinishItem(uc.now().Sub(itemStart), processErr)
		if processErr != nil {
			errorCount++
			slog.Warn("batch_item_failed",
				"batch_id", batch.ID,
				"item_id", item.ID,
				"position", item.Position,
				"error", processErr,
			)
			if err := uc.batches.UpdateItemStatus(ctx, item.ID, domain.ItemProcessing, domain.ItemError, processErr.Error(), ""); err != nil {
				return fmt.Errorf("mark item error: %w", err)
			}
			continue
		}

		successCount++
		if err := uc.batches.UpdateItemStatus(ctx, item.ID, domain.ItemProcessing, domain.ItemSuccess, "", rec.ID); err != nil {
			return fmt.Errorf("mark item success: %w", err)
		}
	}

	if err := uc.batches.CompleteBatch(ctx, batch.ID, successCount, errorCount, uc.now().UTC()); err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	uc.observer.ObserveBatch(batch.Total, errorCount)
	slog.Info("batch_completed",
		"batch_id", batch.ID,
		"total", batch.Total,
		"success", successCount,
		"error", errorCount,
	)
	return nil
}

// Progress returns the batch with its per-item statuses in submission order.
func (uc *BatchUseCase) Progress(ctx context.Context, sess domain.Session, batchID string) (*domain.Batch, []domain.BatchItem, error) {
	batch, items, err := uc.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	if batch.UserID != sess.User.ID {
		return nil, nil, domain.WrapError(domain.ErrBatchNotFound, "read batch progress", fmt.Errorf("batch %s", batchID))
	}
	return batch, items, nil
}
