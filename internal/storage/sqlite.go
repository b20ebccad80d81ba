package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/storage/model"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the sqlite database at path and migrates the schema.
// Use "file::memory:?cache=shared" for an ephemeral database.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	if err := db.AutoMigrate(&model.QuestionPaper{}, &model.Batch{}, &model.GradingRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("module", "storage").Str("path", path).Msg("database ready")
	return db, nil
}

type GormQuestionPaperRepository struct {
	db *gorm.DB
}

func NewGormQuestionPaperRepository(db *gorm.DB) *GormQuestionPaperRepository {
	return &GormQuestionPaperRepository{db: db}
}

func (r *GormQuestionPaperRepository) Get(ctx context.Context, id string) (*domain.QuestionPaper, error) {
	var m model.QuestionPaper
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &domain.QuestionPaper{
		ID:         m.ID,
		QPName:     m.QPName,
		TotalMarks: m.TotalMarks,
		Questions:  m.Questions.Data(),
	}, nil
}

func (r *GormQuestionPaperRepository) Save(ctx context.Context, qp *domain.QuestionPaper) error {
	m := model.QuestionPaper{
		ID:         qp.ID,
		QPName:     qp.QPName,
		TotalMarks: qp.TotalMarks,
		Questions:  datatypes.NewJSONType(qp.Questions),
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

type GormBatchRepository struct {
	db *gorm.DB
}

func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

func (r *GormBatchRepository) Get(ctx context.Context, id string) (*domain.Batch, error) {
	var m model.Batch
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &domain.Batch{
		ID:               m.ID,
		Name:             m.Name,
		VivaPaperID:      m.VivaPaperID,
		PracticalPaperID: m.PracticalPaperID,
	}, nil
}

func (r *GormBatchRepository) Save(ctx context.Context, b *domain.Batch) error {
	m := model.Batch{
		ID:               b.ID,
		Name:             b.Name,
		VivaPaperID:      b.VivaPaperID,
		PracticalPaperID: b.PracticalPaperID,
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

type GormGradingRecordRepository struct {
	db *gorm.DB
}

func NewGormGradingRecordRepository(db *gorm.DB) *GormGradingRecordRepository {
	return &GormGradingRecordRepository{db: db}
}

func (r *GormGradingRecordRepository) Save(ctx context.Context, rec *domain.GradingRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	m := model.GradingRecord{
		ID:           rec.ID,
		StudentID:    rec.StudentID,
		BatchID:      rec.BatchID,
		ExamType:     string(rec.ExamType),
		Answers:      datatypes.NewJSONType(nonNilAnswers(rec.Answers)),
		PerItemMarks: datatypes.NewJSONType(nonNilMarks(rec.PerItemMarks)),
		Remarks:      rec.Remarks,
		TotalScore:   rec.TotalScore,
		SubmittedAt:  rec.SubmittedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRecordExists
		}
		return fmt.Errorf("save grading record: %w", err)
	}
	return nil
}

func (r *GormGradingRecordRepository) Get(ctx context.Context, id string) (*domain.GradingRecord, error) {
	var m model.GradingRecord
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return recordFromModel(&m), nil
}

func (r *GormGradingRecordRepository) ListByBatch(ctx context.Context, batchID string) ([]*domain.GradingRecord, error) {
	var ms []model.GradingRecord
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("submitted_at").
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list grading records: %w", err)
	}
	out := make([]*domain.GradingRecord, 0, len(ms))
	for i := range ms {
		out = append(out, recordFromModel(&ms[i]))
	}
	return out, nil
}

func recordFromModel(m *model.GradingRecord) *domain.GradingRecord {
	return &domain.GradingRecord{
		ID:           m.ID,
		StudentID:    m.StudentID,
		BatchID:      m.BatchID,
		ExamType:     domain.ExamType(m.ExamType),
		Answers:      m.Answers.Data(),
		PerItemMarks: m.PerItemMarks.Data(),
		Remarks:      m.Remarks,
		TotalScore:   m.TotalScore,
		SubmittedAt:  m.SubmittedAt,
	}
}

func nonNilAnswers(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilMarks(m map[int]float64) map[int]float64 {
	if m == nil {
		return map[int]float64{}
	}
	return m
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
