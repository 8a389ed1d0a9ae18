package usecase

import (
	"context"
	"fmt"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
)

// RecordsUseCase is the records browser: list with signed-prefix sort,
// grouping into the six fixed folders, detail read and partial edit.
type RecordsUseCase struct {
	records ports.RecordRepository
}

func NewRecordsUseCase(records ports.RecordRepository) *RecordsUseCase {
	return &RecordsUseCase{records: records}
}

func (uc *RecordsUseCase) List(ctx context.Context, sess domain.Session, sortSpec string) ([]domain.DocumentRecord, error) {
	return uc.records.List(ctx, sess.User.ID, domain.ParseRecordSort(sortSpec))
}

// Folders groups all records by document type. Every one of the six folders
// is present even when empty; unknown stored types land in "other".
func (uc *RecordsUseCase) Folders(ctx context.Context, sess domain.Session) (map[domain.DocumentType][]domain.DocumentRecord, error) {
	all, err := uc.records.List(ctx, sess.User.ID, domain.DefaultRecordSort())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	grouped := make(map[domain.DocumentType][]domain.DocumentRecord, 6)
	for _, t := range domain.FolderTypes() {
		grouped[t] = []domain.DocumentRecord{}
	}
	for _, rec := range all {
		folder := rec.DocumentType
		if _, known := grouped[folder]; !known {
			folder = domain.TypeOther
		}
		grouped[folder] = append(grouped[folder], rec)
	}
	return grouped, nil
}

func (uc *RecordsUseCase) Get(ctx context.Context, sess domain.Session, id string) (*domain.DocumentRecord, error) {
	return uc.records.GetByID(ctx, sess.User.ID, id)
}

func (uc *RecordsUseCase) Update(ctx context.Context, sess domain.Session, id string, patch domain.RecordUpdate) (*domain.DocumentRecord, error) {
	if patch.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update record", fmt.Errorf("no fields to update"))
	}
	return uc.records.Update(ctx, sess.User.ID, id, patch)
}
