package model

import (
	"time"

	"github.com/vivadesk/examrelay/internal/domain"
	"gorm.io/datatypes"
)

type QuestionPaper struct {
	ID         string                                `gorm:"size:64;primaryKey"`
	QPName     string                                `gorm:"size:255;not null"`
	TotalMarks float64                               `gorm:"not null"`
	Questions  datatypes.JSONType[[]domain.Question] `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Batch struct {
	ID               string `gorm:"size:64;primaryKey"`
	Name             string `gorm:"size:255"`
	VivaPaperID      string `gorm:"size:64;index"`
	PracticalPaperID string `gorm:"size:64;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type GradingRecord struct {
	ID           string                                `gorm:"size:64;primaryKey"`
	StudentID    string                                `gorm:"size:64;index;not null"`
	BatchID      string                                `gorm:"size:64;index;not null"`
	ExamType     string                                `gorm:"size:16;not null"`
	Answers      datatypes.JSONType[map[string]string] `gorm:"not null"`
	PerItemMarks datatypes.JSONType[map[int]float64]   `gorm:"not null"`
	Remarks      string                                `gorm:"type:text"`
	TotalScore   float64                               `gorm:"not null"`
	SubmittedAt  time.Time                             `gorm:"not null;index"`
}
