package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
)

// SearchUseCase is a thin pass-through: it hands the user's full record list
// plus the free-text query to the inference endpoint and filters the local
// list to the matched IDs, keeping the ranker's order.
type SearchUseCase struct {
	records ports.RecordRepository
	matcher ports.RecordMatcher
}

func NewSearchUseCase(records ports.RecordRepository, matcher ports.RecordMatcher) *SearchUseCase {
	return &SearchUseCase{records: records, matcher: matcher}
}

func (uc *SearchUseCase) Search(ctx context.Context, sess domain.Session, query string) ([]domain.DocumentRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search records", fmt.Errorf("query is required"))
	}

	all, err := uc.records.List(ctx, sess.User.ID, domain.DefaultRecordSort())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if len(all) == 0 {
		return []domain.DocumentRecord{}, nil
	}

	matchedIDs, err := uc.matcher.MatchRecords(ctx, query, all)
	if err != nil {
		return nil, fmt.Errorf("match records: %w", err)
	}

	byID := make(map[string]domain.DocumentRecord, len(all))
	for _, rec := range all {
		byID[rec.ID] = rec
	}

	results := make([]domain.DocumentRecord, 0, len(matchedIDs))
	for _, id := range matchedIDs {
		if rec, ok := byID[id]; ok {
			results = append(results, rec)
		}
	}
	return results, nil
}
