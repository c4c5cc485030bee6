package session

import (
	"fmt"
	"sort"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
)

// KeyMap translates between backend and local question keys.
// It is built once from the question list and never modified afterwards.
type KeyMap struct {
	toLocal   map[string]string
	toBackend map[string]string
	byLocal   map[string]models.Question
}

func NewKeyMap(questions []models.Question) (*KeyMap, error) {
	km := &KeyMap{
		toLocal:   make(map[string]string, len(questions)),
		toBackend: make(map[string]string, len(questions)),
		byLocal:   make(map[string]models.Question, len(questions)),
	}

	for _, q := range questions {
		if q.BackendKey == "" || q.LocalKey == "" {
			return nil, fmt.Errorf("%w: backend=%q local=%q", ErrEmptyQuestionKey, q.BackendKey, q.LocalKey)
		}
		if _, exists := km.toLocal[q.BackendKey]; exists {
			return nil, fmt.Errorf("%w: backend key %q", ErrDuplicateQuestionKey, q.BackendKey)
		}
		if _, exists := km.toBackend[q.LocalKey]; exists {
			return nil, fmt.Errorf("%w: local key %q", ErrDuplicateQuestionKey, q.LocalKey)
		}
		km.toLocal[q.BackendKey] = q.LocalKey
		km.toBackend[q.LocalKey] = q.BackendKey
		km.byLocal[q.LocalKey] = q
	}

	return km, nil
}

func (km *KeyMap) ToLocal(backendKey string) (string, bool) {
	key, ok := km.toLocal[backendKey]
	return key, ok
}

func (km *KeyMap) ToBackend(localKey string) (string, bool) {
	key, ok := km.toBackend[localKey]
	return key, ok
}

// Question returns the question registered under localKey
func (km *KeyMap) Question(localKey string) (models.Question, bool) {
	q, ok := km.byLocal[localKey]
	return q, ok
}

func (km *KeyMap) Len() int {
	return len(km.byLocal)
}

// SavedFromPayload converts an assembled payload into backend-keyed saved answers.
// Entries whose local key is unknown are dropped.
func (km *KeyMap) SavedFromPayload(payload models.SubmissionPayload) models.SavedAnswers {
	saved := make(models.SavedAnswers, len(payload))

	localKeys := make([]string, 0, len(payload))
	for key := range payload {
		localKeys = append(localKeys, key)
	}
	sort.Strings(localKeys)

	for _, localKey := range localKeys {
		backendKey, ok := km.toBackend[localKey]
		if !ok {
			continue
		}
		entry := payload[localKey]
		seconds := float64(entry.TimeSpent)
		saved[backendKey] = models.SavedAnswer{
			UserAnswer:       copyString(entry.UserAnswer),
			TimeSpentSeconds: &seconds,
		}
	}

	return saved
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
