package domain

// Question is a single scoreable item of a paper. TotalMarks is its maximum.
type Question struct {
	ID         string  `json:"id"`
	Question   string  `json:"question"`
	TotalMarks float64 `json:"totalMarks"`
}

// QuestionPaper is authored elsewhere and never mutated by the core.
type QuestionPaper struct {
	ID         string     `json:"id"`
	QPName     string     `json:"qpName"`
	TotalMarks float64    `json:"totalMarks"`
	Questions  []Question `json:"questions"`
}

// MaxMarks returns the declared maximum of question idx, or false if idx is out of range.
func (qp *QuestionPaper) MaxMarks(idx int) (float64, bool) {
	if qp == nil || idx < 0 || idx >= len(qp.Questions) {
		return 0, false
	}
	return qp.Questions[idx].TotalMarks, true
}

// Batch groups candidates assessed together; its id doubles as the room id.
type Batch struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	VivaPaperID      string `json:"vivaPaperId,omitempty"`
	PracticalPaperID string `json:"practicalPaperId,omitempty"`
}

// AssessmentPaperID prefers the viva paper and falls back to the practical one.
func (b *Batch) AssessmentPaperID() string {
	if b.VivaPaperID != "" {
		return b.VivaPaperID
	}
	return b.PracticalPaperID
}

func (b *Batch) RoomID() RoomID { return RoomID(b.ID) }

type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
