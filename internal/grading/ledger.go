// Package grading accumulates per-question marks for one live session and
// turns them into an immutable GradingRecord on submit.
package grading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/vivadesk/examrelay/internal/domain"
)

var (
	ErrNoQuestionPaper    = errors.New("no question paper bound")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrAlreadySubmitted   = errors.New("grading already submitted")
)

// RecordStore persists finished records.
type RecordStore interface {
	Save(ctx context.Context, rec *domain.GradingRecord) error
}

type Option func(*Ledger)

func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is owned by a single caller and is not safe for concurrent use.
type Ledger struct {
	qp        *domain.QuestionPaper
	store     RecordStore
	marks     map[int]float64
	answers   map[string]string
	remarks   string
	submitted *domain.GradingRecord

	newID func() string
	now   func() time.Time
}

// NewLedger refuses to build a ledger without a question paper.
func NewLedger(qp *domain.QuestionPaper, store RecordStore, opts ...Option) (*Ledger, error) {
	if qp == nil {
		return nil, ErrNoQuestionPaper
	}
	l := &Ledger{
		qp:      qp,
		store:   store,
		marks:   make(map[int]float64),
		answers: make(map[string]string),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Clamp coerces v into [0, maxMarks]. NaN becomes 0.
func Clamp(v, maxMarks float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if maxMarks < 0 {
		return 0
	}
	if v > maxMarks {
		return maxMarks
	}
	return v
}

// ParseMark reads a form value. Blank or non-numeric input is 0; overflow
// keeps its infinite sign for Clamp to bound.
func ParseMark(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return v
}

func (l *Ledger) QuestionPaper() *domain.QuestionPaper { return l.qp }

// SetMark stores the clamped value of raw for question idx and returns it.
func (l *Ledger) SetMark(idx int, raw string) (float64, error) {
	return l.SetMarkValue(idx, ParseMark(raw))
}

func (l *Ledger) SetMarkValue(idx int, v float64) (float64, error) {
	if l.submitted != nil {
		return 0, ErrAlreadySubmitted
	}
	maxMarks, ok := l.qp.MaxMarks(idx)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrQuestionOutOfRange, idx)
	}
	m := Clamp(v, maxMarks)
	l.marks[idx] = m
	return m, nil
}

// Mark returns the entered mark of question idx; unentered questions are 0.
func (l *Ledger) Mark(idx int) float64 { return l.marks[idx] }

func (l *Ledger) Marks() map[int]float64 { return maps.Clone(l.marks) }

func (l *Ledger) SetRemarks(s string) { l.remarks = s }

func (l *Ledger) Remarks() string { return l.remarks }

func (l *Ledger) SetAnswer(questionID, answer string) { l.answers[questionID] = answer }

// ComputeTotal sums the current marks. Nothing is cached.
func (l *Ledger) ComputeTotal() float64 {
	return lo.Sum(lo.Values(l.marks))
}

// MaxTotal is the paper's declared total.
func (l *Ledger) MaxTotal() float64 { return l.qp.TotalMarks }

func (l *Ledger) Submitted() (*domain.GradingRecord, bool) {
	if l.submitted == nil {
		return nil, false
	}
	return l.submitted.Clone(), true
}

// Submit builds the record and hands it to the store. On a store error the
// ledger is left untouched so the caller can retry.
func (l *Ledger) Submit(ctx context.Context, studentID, batchID string, examType domain.ExamType) (*domain.GradingRecord, error) {
	if l.submitted != nil {
		return nil, ErrAlreadySubmitted
	}
	rec := &domain.GradingRecord{
		ID:           l.newID(),
		StudentID:    studentID,
		BatchID:      batchID,
		ExamType:     examType,
		Answers:      maps.Clone(l.answers),
		PerItemMarks: maps.Clone(l.marks),
		Remarks:      l.remarks,
		TotalScore:   l.ComputeTotal(),
		SubmittedAt:  l.now(),
	}
	if err := l.store.Save(ctx, rec); err != nil {
		log.Warn().Err(err).Str("module", "grading").Str("student", studentID).Str("batch", batchID).Msg("submit failed")
		return nil, fmt.Errorf("persist grading record: %w", err)
	}
	l.submitted = rec
	log.Info().Str("module", "grading").Str("id", rec.ID).Str("student", studentID).Float64("total", rec.TotalScore).Msg("grading submitted")
	return rec.Clone(), nil
}
