package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"sync"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
)

// Options configures a Session. Zero values select the defaults.
type Options struct {
	Clock             Clock
	Encoder           Encoder
	EncodeConcurrency int
	MaxFileSize       int64
	Logger            utils.Logger
}

// Session is the in-memory answer state of one attempt: answers per question
// type, review flags, time spent per question and file attachments.
// All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	attemptID string
	logger    utils.Logger
	clock     Clock

	keys      *KeyMap
	questions []models.Question

	answers *AnswerStore
	tracker *TimeTracker
	files   *FileStore
	status  *StatusFeed

	// revision counts mutations; savedRevision is the revision last persisted
	revision      uint64
	savedRevision uint64
	saving        bool
}

// InitReport lists which saved entries were restored and which were skipped
// because their backend key matched no question.
type InitReport struct {
	Restored []string `json:"restored"`
	Skipped  []string `json:"skipped,omitempty"`
}

func New(attemptID string, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = systemClock
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewDefaultLogger()
	}
	if opts.Encoder == nil {
		opts.Encoder = NewContentEncoder(opts.MaxFileSize)
	}

	keys, _ := NewKeyMap(nil)
	return &Session{
		attemptID: attemptID,
		logger:    opts.Logger.With("attempt_id", attemptID),
		clock:     opts.Clock,
		keys:      keys,
		answers:   NewAnswerStore(),
		tracker:   NewTimeTracker(opts.Clock),
		files:     NewFileStore(opts.Encoder, opts.Clock, opts.EncodeConcurrency),
		status:    NewStatusFeed(models.StatusSaved),
	}
}

func (s *Session) AttemptID() string {
	return s.attemptID
}

// Initialize discards all state and seeds the stores from backend-keyed saved
// answers. Saved time is restored even when the answer itself is null.
func (s *Session) Initialize(saved models.SavedAnswers, questions []models.Question) (InitReport, error) {
	keys, err := NewKeyMap(questions)
	if err != nil {
		return InitReport{}, err
	}
	for _, q := range questions {
		if !q.Type.IsValid() {
			return InitReport{}, fmt.Errorf("%w: %q has type %q", ErrQuestionTypeMismatch, q.LocalKey, q.Type)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = keys
	s.questions = append([]models.Question(nil), questions...)
	s.answers.Reset()
	s.tracker.Reset()
	s.files.Reset()

	report := InitReport{Restored: []string{}}
	for _, backendKey := range sortedKeys(saved) {
		entry := saved[backendKey]
		localKey, ok := keys.ToLocal(backendKey)
		if !ok {
			s.logger.Warn("Skipping saved answer for unknown question", "backend_key", backendKey)
			report.Skipped = append(report.Skipped, backendKey)
			continue
		}
		q, _ := keys.Question(localKey)

		if entry.UserAnswer != nil {
			s.answers.Set(q, *entry.UserAnswer)
		}
		if entry.TimeSpentSeconds != nil {
			s.tracker.Seed(localKey, *entry.TimeSpentSeconds)
		}
		report.Restored = append(report.Restored, localKey)
	}

	s.savedRevision = s.revision
	s.status.Set(models.StatusSaved)

	s.logger.Info("Session initialized",
		"questions", len(questions),
		"restored", len(report.Restored),
		"skipped", len(report.Skipped))

	return report, nil
}

// question resolves localKey and checks it against the expected type
func (s *Session) question(localKey string, want models.QuestionType) (models.Question, error) {
	q, ok := s.keys.Question(localKey)
	if !ok {
		return models.Question{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, localKey)
	}
	if want != "" && q.Type != want {
		return models.Question{}, fmt.Errorf("%w: %s is %s, not %s", ErrQuestionTypeMismatch, localKey, q.Type, want)
	}
	return q, nil
}

// touch records an answer mutation of localKey. Any completion override for it
// is dropped so completion follows the stored evidence again.
func (s *Session) touch(localKey string) {
	s.answers.ClearOverride(localKey)
	s.revision++
	s.status.Set(models.StatusUnsaved)
}

// RecordMultipleChoice stores the identifier of the selected option.
// An option without identifier is rejected and nothing is written.
func (s *Session) RecordMultipleChoice(localKey string, option models.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.question(localKey, models.MultipleChoice)
	if err != nil {
		return err
	}
	if option.ID == "" {
		s.logger.Warn("Ignoring multiple-choice selection without option id",
			"question", localKey, "option_text", option.Text)
		return fmt.Errorf("%w: question %s", ErrMalformedOption, localKey)
	}

	s.answers.Set(q, option.ID)
	s.touch(localKey)
	return nil
}

func (s *Session) RecordShortAnswer(localKey, text string) error {
	return s.recordText(localKey, models.ShortAnswer, text)
}

func (s *Session) RecordLongAnswer(localKey, text string) error {
	return s.recordText(localKey, models.LongAnswer, text)
}

func (s *Session) recordText(localKey string, want models.QuestionType, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.question(localKey, want)
	if err != nil {
		return err
	}
	s.answers.Set(q, text)
	s.touch(localKey)
	return nil
}

// RecordDrawing stores the serialized canvas state; nil clears the drawing
func (s *Session) RecordDrawing(localKey string, state *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.question(localKey, models.Drawing)
	if err != nil {
		return err
	}
	if state == nil {
		s.answers.Clear(q)
	} else {
		s.answers.Set(q, *state)
	}
	s.touch(localKey)
	return nil
}

// ToggleReview flips the review flag of localKey and returns the new value
func (s *Session) ToggleReview(localKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.question(localKey, ""); err != nil {
		return false, err
	}
	review := s.answers.ToggleReview(localKey)
	s.revision++
	s.status.Set(models.StatusUnsaved)
	return review, nil
}

// SetCompletion overrides the derived completion of localKey until its answer
// or attachments change again.
func (s *Session) SetCompletion(localKey string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.question(localKey, ""); err != nil {
		return err
	}
	s.answers.SetOverride(localKey, value)
	s.revision++
	s.status.Set(models.StatusUnsaved)
	return nil
}

// Navigate moves time accrual to localKey. An empty key pauses tracking.
func (s *Session) Navigate(localKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if localKey != "" {
		if _, err := s.question(localKey, ""); err != nil {
			return err
		}
	}
	s.tracker.OnQuestionChange(localKey)
	return nil
}

// AddFiles encodes and attaches uploads to a long-answer question. The session
// stays usable while files are encoded; a failed file leaves a failure marker
// and is not attached.
func (s *Session) AddFiles(ctx context.Context, localKey string, uploads []models.Upload) (AddFilesResult, error) {
	s.mu.Lock()
	q, err := s.question(localKey, "")
	if err == nil && !q.Type.AcceptsAttachments() {
		err = fmt.Errorf("%w: %s is %s", ErrAttachmentsNotAllowed, localKey, q.Type)
	}
	files := s.files
	s.mu.Unlock()
	if err != nil {
		return AddFilesResult{}, err
	}

	result := files.AddFiles(ctx, localKey, uploads)
	for _, failed := range result.Failed {
		s.logger.Warn("Attachment could not be prepared",
			"question", localKey,
			"filename", failed.Key.Filename,
			"error", failed.Error)
	}

	if len(result.Added) > 0 {
		s.mu.Lock()
		s.touch(localKey)
		s.mu.Unlock()
	}
	return result, nil
}

// RemoveFile detaches the first attachment named filename. Completion follows
// the remaining evidence, so removing the only file of an unanswered essay
// question leaves it incomplete.
func (s *Session) RemoveFile(localKey, filename string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.question(localKey, models.LongAnswer); err != nil {
		return false, err
	}
	removed, _ := s.files.RemoveFile(localKey, filename)
	if removed {
		s.touch(localKey)
	}
	return removed, nil
}

// Attachments returns the metadata of the files attached to localKey
func (s *Session) Attachments(localKey string) []models.FileInfo {
	list := s.files.Attachments(localKey)
	infos := make([]models.FileInfo, 0, len(list))
	for _, a := range list {
		infos = append(infos, a.Info())
	}
	return infos
}

// Files returns the attachments of localKey including their bytes
func (s *Session) Files(localKey string) []models.FileAttachment {
	return s.files.Attachments(localKey)
}

func (s *Session) Processing() map[models.ProcessingKey]models.ProcessingState {
	return s.files.Processing()
}

func (s *Session) completed(q models.Question) bool {
	if v, ok := s.answers.Override(q.LocalKey); ok {
		return v
	}
	answer, has := s.answers.Answer(q)
	return isComplete(q, answer, has, s.files.Count(q.LocalKey))
}

// Completion returns the completion flag of every question
func (s *Session) Completion() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags := make(map[string]bool, len(s.questions))
	for _, q := range s.questions {
		flags[q.LocalKey] = s.completed(q)
	}
	return flags
}

// State returns a view of every question in question order
func (s *Session) State() []models.AnswerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := s.tracker.Snapshot()
	states := make([]models.AnswerState, 0, len(s.questions))
	for _, q := range s.questions {
		state := models.AnswerState{
			LocalKey:  q.LocalKey,
			Type:      q.Type,
			Completed: s.completed(q),
			Review:    s.answers.Review(q.LocalKey),
			TimeSpent: times[q.LocalKey],
		}
		if answer, ok := s.answers.Answer(q); ok {
			state.UserAnswer = &answer
		}
		for _, a := range s.files.Attachments(q.LocalKey) {
			state.Attachments = append(state.Attachments, a.Info())
		}
		states = append(states, state)
	}
	return states
}

// Assemble builds the submission payload without mutating the session.
// The running interval of the current question is folded into its time.
func (s *Session) Assemble() models.SubmissionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assemble()
}

// Finalize stops time tracking and assembles the payload.
// It is used on submit and on timeout.
func (s *Session) Finalize() models.SubmissionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.OnQuestionChange("")
	return s.assemble()
}

func (s *Session) assemble() models.SubmissionPayload {
	times := s.tracker.Snapshot()
	payload := make(models.SubmissionPayload, len(s.questions))

	for _, q := range s.questions {
		entry := models.SubmissionEntry{
			TimeSpent: int(math.Round(times[q.LocalKey])),
		}
		if answer, ok := s.answers.Answer(q); ok {
			entry.UserAnswer = &answer
		}
		if q.Type.AcceptsAttachments() {
			for _, a := range s.files.Attachments(q.LocalKey) {
				entry.Base64Images = append(entry.Base64Images, models.Base64Image{
					Data:     base64.StdEncoding.EncodeToString(a.Data),
					Filename: a.Filename,
					MIMEType: a.MIMEType,
				})
			}
		}
		payload[q.LocalKey] = entry
	}

	return payload
}

// BeginSave marks the session as saving and returns the revision being saved
func (s *Session) BeginSave() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = true
	s.status.Set(models.StatusSaving)
	return s.revision
}

// FinishSave records the outcome of a save started at revision. If the
// session changed while saving it stays unsaved.
func (s *Session) FinishSave(revision uint64, saveErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = false
	switch {
	case saveErr != nil:
		s.status.Set(models.StatusError)
	case revision == s.revision:
		s.savedRevision = revision
		s.status.Set(models.StatusSaved)
	default:
		if revision > s.savedRevision {
			s.savedRevision = revision
		}
		s.status.Set(models.StatusUnsaved)
	}
}

// Dirty reports whether the session holds changes not yet saved
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision != s.savedRevision
}

func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

func (s *Session) Status() models.SavedStatus {
	return s.status.Status()
}

// Subscribe returns a feed of saved-status changes
func (s *Session) Subscribe() (<-chan models.SavedStatus, func()) {
	return s.status.Subscribe()
}

// Close releases status subscribers
func (s *Session) Close() {
	s.status.Close()
}

func (s *Session) Questions() []models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Question(nil), s.questions...)
}

func (s *Session) KeyMap() *KeyMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}
