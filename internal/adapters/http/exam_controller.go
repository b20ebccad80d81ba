package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/grading"
	"github.com/vivadesk/examrelay/internal/storage"
)

// Stores are the persistence collaborators behind the REST endpoints.
type Stores struct {
	Papers  storage.QuestionPaperRepository
	Batches storage.BatchRepository
	Records storage.GradingRecordRepository
}

type ExamController struct {
	stores Stores
}

func NewExamController(stores Stores) *ExamController {
	return &ExamController{stores: stores}
}

func storageStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrRecordExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (c *ExamController) GetQuestionPaper(ctx *gin.Context) {
	qp, err := c.stores.Papers.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, qp)
}

func (c *ExamController) GetBatch(ctx *gin.Context) {
	b, err := c.stores.Batches.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, b)
}

// GetBatchQuestionPaper resolves the paper a live assessment of the batch uses.
func (c *ExamController) GetBatchQuestionPaper(ctx *gin.Context) {
	b, err := c.stores.Batches.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	paperID := b.AssessmentPaperID()
	if paperID == "" {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no question paper assigned to batch"})
		return
	}
	qp, err := c.stores.Papers.Get(ctx.Request.Context(), paperID)
	if err != nil {
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, qp)
}

func (c *ExamController) CreateGradingRecord(ctx *gin.Context) {
	var rec domain.GradingRecord
	if err := ctx.ShouldBindJSON(&rec); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}
	if rec.ExamType == "" {
		rec.ExamType = domain.ExamTypeViva
	}
	if rec.BatchID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "batchId is required"})
		return
	}
	b, err := c.stores.Batches.Get(ctx.Request.Context(), rec.BatchID)
	if err != nil {
		status := storageStatus(err)
		if status == http.StatusNotFound {
			ctx.JSON(status, gin.H{"error": "batch not found"})
			return
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	qp, err := c.stores.Papers.Get(ctx.Request.Context(), b.AssessmentPaperID())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "batch has no question paper"})
			return
		}
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	for idx, m := range rec.PerItemMarks {
		maxMarks, ok := qp.MaxMarks(idx)
		if !ok {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("question %d out of range", idx)})
			return
		}
		rec.PerItemMarks[idx] = grading.Clamp(m, maxMarks)
	}
	// the total is derived, a client-sent value is ignored
	rec.TotalScore = lo.Sum(lo.Values(rec.PerItemMarks))

	if err := c.stores.Records.Save(ctx.Request.Context(), &rec); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("student", rec.StudentID).Msg("grading record rejected")
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, rec)
}

func (c *ExamController) GetGradingRecord(ctx *gin.Context) {
	rec, err := c.stores.Records.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, rec)
}

func (c *ExamController) ListBatchRecords(ctx *gin.Context) {
	recs, err := c.stores.Records.ListByBatch(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(storageStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"records": recs})
}
