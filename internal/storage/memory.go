package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/vivadesk/examrelay/internal/domain"
)

type InMemoryQuestionPaperRepository struct {
	mu     sync.RWMutex
	papers map[string]*domain.QuestionPaper
}

func NewInMemoryQuestionPaperRepository() *InMemoryQuestionPaperRepository {
	return &InMemoryQuestionPaperRepository{papers: make(map[string]*domain.QuestionPaper)}
}

func (r *InMemoryQuestionPaperRepository) Get(ctx context.Context, id string) (*domain.QuestionPaper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	qp, ok := r.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *qp
	out.Questions = append([]domain.Question(nil), qp.Questions...)
	return &out, nil
}

func (r *InMemoryQuestionPaperRepository) Save(ctx context.Context, qp *domain.QuestionPaper) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *qp
	cp.Questions = append([]domain.Question(nil), qp.Questions...)
	r.papers[qp.ID] = &cp
	return nil
}

type InMemoryBatchRepository struct {
	mu      sync.RWMutex
	batches map[string]*domain.Batch
}

func NewInMemoryBatchRepository() *InMemoryBatchRepository {
	return &InMemoryBatchRepository{batches: make(map[string]*domain.Batch)}
}

func (r *InMemoryBatchRepository) Get(ctx context.Context, id string) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r *InMemoryBatchRepository) Save(ctx context.Context, b *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

type InMemoryGradingRecordRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.GradingRecord
}

func NewInMemoryGradingRecordRepository() *InMemoryGradingRecordRepository {
	return &InMemoryGradingRecordRepository{records: make(map[string]*domain.GradingRecord)}
}

func (r *InMemoryGradingRecordRepository) Save(ctx context.Context, rec *domain.GradingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return ErrRecordExists
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *InMemoryGradingRecordRepository) Get(ctx context.Context, id string) (*domain.GradingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *InMemoryGradingRecordRepository) ListByBatch(ctx context.Context, batchID string) ([]*domain.GradingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.GradingRecord, 0)
	for _, rec := range r.records {
		if rec.BatchID == batchID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}
