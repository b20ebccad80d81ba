// Package storage is the persistence collaborator: question papers and batches
// are read, grading records are written once.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/vivadesk/examrelay/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRecordExists  = errors.New("grading record already exists")
	ErrInvalidRecord = errors.New("invalid grading record")
)

type QuestionPaperRepository interface {
	Get(ctx context.Context, id string) (*domain.QuestionPaper, error)
	Save(ctx context.Context, qp *domain.QuestionPaper) error
}

type BatchRepository interface {
	Get(ctx context.Context, id string) (*domain.Batch, error)
	Save(ctx context.Context, b *domain.Batch) error
}

// GradingRecordRepository never overwrites: records are immutable once saved.
type GradingRecordRepository interface {
	Save(ctx context.Context, rec *domain.GradingRecord) error
	Get(ctx context.Context, id string) (*domain.GradingRecord, error)
	ListByBatch(ctx context.Context, batchID string) ([]*domain.GradingRecord, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateRecord(rec *domain.GradingRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil", ErrInvalidRecord)
	}
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	for idx, m := range rec.PerItemMarks {
		if idx < 0 || m < 0 {
			return fmt.Errorf("%w: mark %d is %v", ErrInvalidRecord, idx, m)
		}
	}
	return nil
}
