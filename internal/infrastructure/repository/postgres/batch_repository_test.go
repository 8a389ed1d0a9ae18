package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/medsync/medsync-server/internal/core/domain"
)

func newBatchRepoWithMock(t *testing.T) (*BatchRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &BatchRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestUpdateItemStatusRejectsBackwardTransition(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	err := repo.UpdateItemStatus(context.Background(), "item-1", domain.ItemSuccess, domain.ItemProcessing, "", "")
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateItemStatusGuardsOnCurrentStatus(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batch_items").
		WithArgs("item-1", "pending", "processing", "", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateItemStatus(context.Background(), "item-1", domain.ItemPending, domain.ItemProcessing, "", "")
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition when row already moved, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateItemStatusSuccessStoresRecordID(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batch_items").
		WithArgs("item-1", "processing", "success", "", "rec-9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateItemStatus(context.Background(), "item-1", domain.ItemProcessing, domain.ItemSuccess, "", "rec-9"); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompleteBatchIsIdempotentViaStatusGuard(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE batches").
		WithArgs("batch-1", "completed", 2, 1, at, "running").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE batches").
		WithArgs("batch-1", "completed", 2, 1, at, "running").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.CompleteBatch(context.Background(), "batch-1", 2, 1, at); err != nil {
		t.Fatalf("first CompleteBatch: %v", err)
	}
	err := repo.CompleteBatch(context.Background(), "batch-1", 2, 1, at)
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("second CompleteBatch should hit the status guard, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateBatchInsertsItemsInOrder(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	batch := &domain.Batch{ID: "batch-1", UserID: "user-1", Status: domain.BatchRunning, Total: 2, CreatedAt: now}
	items := []domain.BatchItem{
		{ID: "item-1", BatchID: "batch-1", Position: 0, Filename: "a.jpg", ContentType: "image/jpeg", StagingKey: "staging/a", Status: domain.ItemPending},
		{ID: "item-2", BatchID: "batch-1", Position: 1, Filename: "b.jpg", ContentType: "image/jpeg", StagingKey: "staging/b", Status: domain.ItemPending},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO batches").
		WithArgs("batch-1", "user-1", "running", 2, 0, 0, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO batch_items").
		WithArgs("item-1", "batch-1", 0, "a.jpg", "image/jpeg", "staging/a", "pending", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO batch_items").
		WithArgs("item-2", "batch-1", 1, "b.jpg", "image/jpeg", "staging/b", "pending", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CreateBatch(context.Background(), batch, items); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
