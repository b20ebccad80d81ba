// Package viva is the examiner's live assessment console. It binds a batch to
// its question paper, runs the media session and collects marks.
package viva

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/vivadesk/examrelay/internal/domain"
	"github.com/vivadesk/examrelay/internal/grading"
	"github.com/vivadesk/examrelay/internal/session"
	"github.com/vivadesk/examrelay/internal/storage"
)

var ErrBatchNotFound = errors.New("batch not found")

type Deps struct {
	Papers   storage.QuestionPaperRepository
	Batches  storage.BatchRepository
	Records  grading.RecordStore
	Capture  session.Capture
	Signaler session.RoomSignaler
}

type Console struct {
	batch   *domain.Batch
	student string
	session *session.Session
	ledger  *grading.Ledger
}

// Open resolves the batch's question paper and prepares an idle session.
// Without a paper there is no console: the caller gets grading.ErrNoQuestionPaper
// and must only offer to close.
func Open(ctx context.Context, deps Deps, batchID, studentID string, examiner domain.UserID) (*Console, error) {
	batch, err := deps.Batches.Get(ctx, batchID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}
		return nil, err
	}
	paperID := batch.AssessmentPaperID()
	if paperID == "" {
		return nil, fmt.Errorf("%w: batch %s has none assigned", grading.ErrNoQuestionPaper, batchID)
	}
	qp, err := deps.Papers.Get(ctx, paperID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", grading.ErrNoQuestionPaper, paperID)
		}
		return nil, err
	}
	ledger, err := grading.NewLedger(qp, deps.Records)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "viva").Str("batch", batchID).Str("paper", qp.ID).Str("student", studentID).Msg("console opened")
	return &Console{
		batch:   batch,
		student: studentID,
		session: session.New(batch.RoomID(), examiner, deps.Capture, deps.Signaler),
		ledger:  ledger,
	}, nil
}

func (c *Console) Session() *session.Session { return c.session }

func (c *Console) Ledger() *grading.Ledger { return c.ledger }

func (c *Console) Start(ctx context.Context) error { return c.session.Start(ctx) }

func (c *Console) ToggleAudio() (bool, error) { return c.session.ToggleAudio() }

func (c *Console) ToggleVideo() (bool, error) { return c.session.ToggleVideo() }

// Focus marks question idx as the one being asked.
func (c *Console) Focus(idx int) error {
	if _, ok := c.ledger.QuestionPaper().MaxMarks(idx); !ok {
		return fmt.Errorf("%w: %d", grading.ErrQuestionOutOfRange, idx)
	}
	c.session.SetActiveQuestion(idx)
	return nil
}

// EnterMark focuses idx and records the clamped mark.
func (c *Console) EnterMark(idx int, raw string) (float64, error) {
	m, err := c.ledger.SetMark(idx, raw)
	if err != nil {
		return 0, err
	}
	c.session.SetActiveQuestion(idx)
	return m, nil
}

func (c *Console) SetRemarks(s string) { c.ledger.SetRemarks(s) }

func (c *Console) EndCall(ctx context.Context) error { return c.session.End(ctx) }

// Submit persists the evaluation and then ends the call. A failed save keeps
// both the marks and the call so the examiner can retry.
func (c *Console) Submit(ctx context.Context) (*domain.GradingRecord, error) {
	rec, err := c.ledger.Submit(ctx, c.student, c.batch.ID, domain.ExamTypeViva)
	if err != nil {
		return nil, err
	}
	if err := c.session.End(ctx); err != nil {
		log.Warn().Err(err).Str("module", "viva").Str("batch", c.batch.ID).Msg("end call after submit")
	}
	return rec, nil
}

// Close tears the console down regardless of state.
func (c *Console) Close() { c.session.Close() }

type QuestionView struct {
	Index    int
	Question string
	MaxMarks float64
	Mark     float64
	Active   bool
}

type View struct {
	BatchID      string
	StudentID    string
	PaperName    string
	State        session.State
	AudioEnabled bool
	VideoEnabled bool
	Questions    []QuestionView
	Remarks      string
	Total        float64
	MaxTotal     float64
	TotalLabel   string
}

func (c *Console) View() View {
	qp := c.ledger.QuestionPaper()
	active := c.session.ActiveQuestion()
	qs := make([]QuestionView, len(qp.Questions))
	for i, q := range qp.Questions {
		qs[i] = QuestionView{
			Index:    i,
			Question: q.Question,
			MaxMarks: q.TotalMarks,
			Mark:     c.ledger.Mark(i),
			Active:   i == active,
		}
	}
	total := c.ledger.ComputeTotal()
	return View{
		BatchID:      c.batch.ID,
		StudentID:    c.student,
		PaperName:    qp.QPName,
		State:        c.session.State(),
		AudioEnabled: c.session.AudioEnabled(),
		VideoEnabled: c.session.VideoEnabled(),
		Questions:    qs,
		Remarks:      c.ledger.Remarks(),
		Total:        total,
		MaxTotal:     qp.TotalMarks,
		TotalLabel:   "Total Score: " + formatMarks(total) + " / " + formatMarks(qp.TotalMarks),
	}
}

func formatMarks(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
