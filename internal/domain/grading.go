package domain

import (
	"maps"
	"time"
)

type ExamType string

const (
	ExamTypeViva ExamType = "VIVA"
)

// GradingRecord is the immutable outcome of a grading session.
// PerItemMarks is keyed by question index.
type GradingRecord struct {
	ID           string            `json:"id" validate:"required"`
	StudentID    string            `json:"studentId" validate:"required"`
	BatchID      string            `json:"batchId" validate:"required"`
	ExamType     ExamType          `json:"examType" validate:"required"`
	Answers      map[string]string `json:"answers"`
	PerItemMarks map[int]float64   `json:"assessorMarks"`
	Remarks      string            `json:"assessorRemarks"`
	TotalScore   float64           `json:"totalScore" validate:"gte=0"`
	SubmittedAt  time.Time         `json:"submittedAt" validate:"required"`
}

// Clone returns a deep copy so callers cannot mutate a stored record.
func (r *GradingRecord) Clone() *GradingRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.PerItemMarks = maps.Clone(r.PerItemMarks)
	out.Answers = maps.Clone(r.Answers)
	return &out
}
