package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/infrastructure/resilience"
)

func fastExecutor(maxAttempts int) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	})
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type memRecordRepo struct {
	mu      sync.Mutex
	records map[string]domain.DocumentRecord
	failOn  map[string]error
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: map[string]domain.DocumentRecord{}, failOn: map[string]error{}}
}

func (r *memRecordRepo) Create(_ context.Context, rec *domain.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn["create"]; err != nil {
		return err
	}
	r.records[rec.ID] = *rec
	return nil
}

func (r *memRecordRepo) GetByID(_ context.Context, userID, id string) (*domain.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.UserID != userID {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id %s", id))
	}
	return &rec, nil
}

func (r *memRecordRepo) List(_ context.Context, userID string, _ domain.RecordSort) ([]domain.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn["list"]; err != nil {
		return nil, err
	}
	out := []domain.DocumentRecord{}
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRecordRepo) Update(_ context.Context, userID, id string, patch domain.RecordUpdate) (*domain.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.UserID != userID {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "update record", fmt.Errorf("id %s", id))
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.DocumentType != nil {
		rec.DocumentType = domain.DocumentType(*patch.DocumentType)
	}
	if patch.DoctorName != nil {
		rec.DoctorName = *patch.DoctorName
	}
	if patch.RecordDate != nil {
		rec.RecordDate = *patch.RecordDate
	}
	if patch.Notes != nil {
		rec.Notes = *patch.Notes
	}
	r.records[id] = rec
	return &rec, nil
}

type memStorage struct {
	mu       sync.Mutex
	staged   map[string][]byte
	promoted map[string]string
	failNext map[string]error
}

func newMemStorage() *memStorage {
	return &memStorage{
		staged:   map[string][]byte{},
		promoted: map[string]string{},
		failNext: map[string]error{},
	}
}

func (s *memStorage) Stage(_ context.Context, key, _ string, data io.Reader, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext["stage"]; err != nil {
		return err
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.staged[key] = payload
	return nil
}

func (s *memStorage) Promote(_ context.Context, stagingKey, permanentKey, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext["promote"]; err != nil {
		return "", err
	}
	if _, ok := s.staged[stagingKey]; !ok {
		return "", fmt.Errorf("staged object %s not found", stagingKey)
	}
	delete(s.staged, stagingKey)
	url := "http://cdn.test/" + permanentKey
	s.promoted[permanentKey] = url
	return url, nil
}

func (s *memStorage) Discard(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, key)
	return nil
}

func (s *memStorage) stagedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.staged))
	for k := range s.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scriptedExtractor returns its results in order; once the script runs out it
// repeats the last entry.
type scriptedExtractor struct {
	mu      sync.Mutex
	script  []func() (domain.ExtractionResult, error)
	calls   int
	lastURL string
}

func (e *scriptedExtractor) ExtractDocument(_ context.Context, documentURL string) (domain.ExtractionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastURL = documentURL
	idx := e.calls
	if idx >= len(e.script) {
		idx = len(e.script) - 1
	}
	e.calls++
	return e.script[idx]()
}

func extractOK(res domain.ExtractionResult) func() (domain.ExtractionResult, error) {
	return func() (domain.ExtractionResult, error) { return res, nil }
}

func extractFail(err error) func() (domain.ExtractionResult, error) {
	return func() (domain.ExtractionResult, error) { return domain.ExtractionResult{}, err }
}

type memBatchRepo struct {
	mu      sync.Mutex
	batches map[string]*domain.Batch
	items   map[string][]*domain.BatchItem
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: map[string]*domain.Batch{}, items: map[string][]*domain.BatchItem{}}
}

func (r *memBatchRepo) CreateBatch(_ context.Context, batch *domain.Batch, items []domain.BatchItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := *batch
	r.batches[batch.ID] = &b
	stored := make([]*domain.BatchItem, len(items))
	for i := range items {
		item := items[i]
		stored[i] = &item
	}
	r.items[batch.ID] = stored
	return nil
}

func (r *memBatchRepo) GetBatch(_ context.Context, batchID string) (*domain.Batch, []domain.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("id %s", batchID))
	}
	b := *batch
	items := make([]domain.BatchItem, len(r.items[batchID]))
	for i, item := range r.items[batchID] {
		items[i] = *item
	}
	return &b, items, nil
}

func (r *memBatchRepo) UpdateItemStatus(_ context.Context, itemID string, from, to domain.BatchItemStatus, errMessage, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !from.CanTransition(to) {
		return domain.WrapError(domain.ErrInvalidTransition, "update batch item", fmt.Errorf("%s -> %s", from, to))
	}
	for _, items := range r.items {
		for _, item := range items {
			if item.ID != itemID {
				continue
			}
			if item.Status != from {
				return domain.WrapError(domain.ErrInvalidTransition, "update batch item",
					fmt.Errorf("item %s no longer in status %s", itemID, from))
			}
			item.Status = to
			item.ErrorMessage = errMessage
			item.RecordID = recordID
			return nil
		}
	}
	return domain.WrapError(domain.ErrBatchNotFound, "update batch item", fmt.Errorf("item %s", itemID))
}

func (r *memBatchRepo) CompleteBatch(_ context.Context, batchID string, successCount, errorCount int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return domain.WrapError(domain.ErrBatchNotFound, "complete batch", fmt.Errorf("id %s", batchID))
	}
	if batch.Status != domain.BatchRunning {
		return domain.WrapError(domain.ErrInvalidTransition, "complete batch", fmt.Errorf("batch %s already completed", batchID))
	}
	batch.Status = domain.BatchCompleted
	batch.SuccessCount = successCount
	batch.ErrorCount = errorCount
	batch.CompletedAt = &at
	return nil
}

type memQueue struct {
	mu        sync.Mutex
	published []string
	publishCb func(batchID string) error
}

func (q *memQueue) PublishBatchSubmitted(_ context.Context, batchID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, batchID)
	if q.publishCb != nil {
		return q.publishCb(batchID)
	}
	return nil
}

func (q *memQueue) SubscribeBatchSubmitted(ctx context.Context, _ func(context.Context, string) error) error {
	<-ctx.Done()
	return nil
}

type stubMatcher struct {
	ids       []string
	err       error
	lastQuery string
	gotCount  int
}

func (m *stubMatcher) MatchRecords(_ context.Context, query string, records []domain.DocumentRecord) ([]string, error) {
	m.lastQuery = query
	m.gotCount = len(records)
	return m.ids, m.err
}
