package session

import (
	"strings"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
)

// AnswerStore keeps one answer map per question type plus the review flags.
// A key only ever lives in the map selected by its question type.
type AnswerStore struct {
	multipleChoice map[string]string
	shortAnswer    map[string]string
	longAnswer     map[string]string
	drawing        map[string]string

	review    map[string]bool
	overrides map[string]bool
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		multipleChoice: make(map[string]string),
		shortAnswer:    make(map[string]string),
		longAnswer:     make(map[string]string),
		drawing:        make(map[string]string),
		review:         make(map[string]bool),
		overrides:      make(map[string]bool),
	}
}

func (s *AnswerStore) slot(t models.QuestionType) map[string]string {
	switch t {
	case models.MultipleChoice:
		return s.multipleChoice
	case models.ShortAnswer:
		return s.shortAnswer
	case models.LongAnswer:
		return s.longAnswer
	case models.Drawing:
		return s.drawing
	default:
		return nil
	}
}

func (s *AnswerStore) slots() []map[string]string {
	return []map[string]string{s.multipleChoice, s.shortAnswer, s.longAnswer, s.drawing}
}

// Set writes value into the map of q's type and removes the key from the others
func (s *AnswerStore) Set(q models.Question, value string) {
	target := s.slot(q.Type)
	if target == nil {
		return
	}
	for _, m := range s.slots() {
		delete(m, q.LocalKey)
	}
	target[q.LocalKey] = value
}

func (s *AnswerStore) Clear(q models.Question) {
	for _, m := range s.slots() {
		delete(m, q.LocalKey)
	}
}

func (s *AnswerStore) Answer(q models.Question) (string, bool) {
	m := s.slot(q.Type)
	if m == nil {
		return "", false
	}
	v, ok := m[q.LocalKey]
	return v, ok
}

// Holders returns how many maps hold a value for key
func (s *AnswerStore) Holders(key string) int {
	count := 0
	for _, m := range s.slots() {
		if _, ok := m[key]; ok {
			count++
		}
	}
	return count
}

func (s *AnswerStore) ToggleReview(key string) bool {
	s.review[key] = !s.review[key]
	return s.review[key]
}

func (s *AnswerStore) Review(key string) bool {
	return s.review[key]
}

func (s *AnswerStore) SetOverride(key string, value bool) {
	s.overrides[key] = value
}

func (s *AnswerStore) ClearOverride(key string) {
	delete(s.overrides, key)
}

func (s *AnswerStore) Override(key string) (bool, bool) {
	v, ok := s.overrides[key]
	return v, ok
}

func (s *AnswerStore) Reset() {
	for _, m := range s.slots() {
		clear(m)
	}
	clear(s.review)
	clear(s.overrides)
}

// isComplete derives completion from the evidence held for a question:
// a chosen option, non-blank text, a present drawing or at least one attachment.
func isComplete(q models.Question, answer string, hasAnswer bool, attachments int) bool {
	switch q.Type {
	case models.MultipleChoice:
		return hasAnswer && answer != ""
	case models.ShortAnswer:
		return hasAnswer && strings.TrimSpace(answer) != ""
	case models.LongAnswer:
		return (hasAnswer && strings.TrimSpace(answer) != "") || attachments > 0
	case models.Drawing:
		return hasAnswer
	default:
		return false
	}
}
