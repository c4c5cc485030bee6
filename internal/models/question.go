package models

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
	LongAnswer     QuestionType = "long_answer"
	Drawing        QuestionType = "drawing"
)

// QuestionTypes lists every answer slot the session knows about
var QuestionTypes = []QuestionType{MultipleChoice, ShortAnswer, LongAnswer, Drawing}

func (t QuestionType) IsValid() bool {
	for _, qt := range QuestionTypes {
		if qt == t {
			return true
		}
	}
	return false
}

// AcceptsAttachments reports whether files may be attached to answers of this type
func (t QuestionType) AcceptsAttachments() bool {
	return t == LongAnswer
}

// Question is the read-only view of a question inside an attempt.
// BackendKey identifies the saved-answer record on the remote backend,
// LocalKey is the identifier used by every session store.
type Question struct {
	BackendKey string       `json:"backend_key" validate:"required"`
	LocalKey   string       `json:"local_key" validate:"required"`
	Type       QuestionType `json:"question_type" validate:"required,question_type"`
	Title      string       `json:"title,omitempty"`
	Points     float64      `json:"points,omitempty" validate:"gte=0"`
}

// Option is a multiple-choice option as selected by the student
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}
