package models

// SavedAnswer is a previously persisted answer as returned by the backend
type SavedAnswer struct {
	UserAnswer       *string  `json:"user_answer"`
	TimeSpentSeconds *float64 `json:"time_spent_seconds,omitempty"`
}

// SavedAnswers maps backend question keys to saved answers
type SavedAnswers map[string]SavedAnswer

// SavedStatus is the persistence state of a session as seen by the auto-save collaborator
type SavedStatus string

const (
	StatusSaved   SavedStatus = "saved"
	StatusUnsaved SavedStatus = "unsaved"
	StatusSaving  SavedStatus = "saving"
	StatusError   SavedStatus = "error"
)

// AnswerState is a read-only view of a single question's state in a session
type AnswerState struct {
	LocalKey    string       `json:"local_key"`
	Type        QuestionType `json:"question_type"`
	UserAnswer  *string      `json:"user_answer"`
	Completed   bool         `json:"completed"`
	Review      bool         `json:"review"`
	TimeSpent   float64      `json:"time_spent"`
	Attachments []FileInfo   `json:"attachments,omitempty"`
}
