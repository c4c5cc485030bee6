package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/backend"
	"github.com/SAP-F-2025/attempt-session-service/internal/cache"
	"github.com/SAP-F-2025/attempt-session-service/internal/config"
	"github.com/SAP-F-2025/attempt-session-service/internal/events"
	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/repositories"
	"github.com/SAP-F-2025/attempt-session-service/internal/session"
	"github.com/SAP-F-2025/attempt-session-service/internal/storage"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
	"github.com/SAP-F-2025/attempt-session-service/internal/validator"
	"github.com/SAP-F-2025/attempt-session-service/pkg/monitoring"
)

// finishedStatuses are backend attempt states that no longer accept answers
var finishedStatuses = map[string]bool{
	"submitted": true,
	"completed": true,
	"graded":    true,
}

type Dependencies struct {
	Backend   backend.AttemptBackend
	Snapshots repositories.SnapshotRepository
	Cache     cache.CacheService
	Events    events.EventPublisher
	Archive   storage.AttachmentArchive
	Validator *validator.Validator
	Logger    *slog.Logger
	Config    config.SessionConfig
	// Clock defaults to time.Now
	Clock func() time.Time
}

// openAttempt is one registered session together with the attempt it belongs to
type openAttempt struct {
	attempt *models.Attempt
	userID  string
	session *session.Session
	report  session.InitReport

	saveMu   sync.Mutex
	submitMu sync.Mutex

	// stateMu is held shared by answer changes and exclusively while the
	// submission payload is taken, so no change lands between the two
	stateMu    sync.RWMutex
	submitting bool
}

type attemptSessionService struct {
	deps   Dependencies
	logger *slog.Logger
	ops    *ServiceLogger
	clock  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*openAttempt
	// opening serializes Open per attempt so two requests build one session
	opening map[string]*sync.Mutex
}

func NewAttemptSessionService(deps Dependencies) AttemptSessionService {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Archive == nil {
		deps.Archive = storage.NoopArchive{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	return &attemptSessionService{
		deps:   deps,
		logger: deps.Logger,
		ops: NewServiceLogger(deps.Logger, LogConfig{
			Service:   "attempt-session-service",
			Component: "sessions",
		}),
		clock:    deps.Clock,
		sessions: make(map[string]*openAttempt),
		opening:  make(map[string]*sync.Mutex),
	}
}

// ===== SESSION LIFECYCLE =====

func (s *attemptSessionService) Open(ctx context.Context, attemptID, userID string) (view *SessionView, err error) {
	op := s.ops.WithOperation(ctx, "open", userID, attemptID)
	defer func() { op.LogResult(err) }()

	lock := s.openLock(attemptID)
	lock.Lock()
	defer lock.Unlock()

	if open, ok := s.lookup(attemptID); ok {
		if err := checkOwner(open, userID, "open"); err != nil {
			return nil, err
		}
		return s.buildView(open), nil
	}

	submitted, err := s.deps.Snapshots.HasSubmission(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to check submission: %w", err)
	}
	if submitted {
		return nil, ErrAttemptAlreadySubmitted
	}

	attempt, err := s.fetchAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != "" && userID != "" && attempt.StudentID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "open", "attempt belongs to another student")
	}
	if finishedStatuses[strings.ToLower(attempt.Status)] {
		return nil, ErrAttemptAlreadySubmitted
	}
	if end := attempt.EndsAt(); end != nil && !s.clock().Before(*end) {
		return nil, ErrAttemptTimeExpired
	}
	if len(attempt.Questions) == 0 {
		return nil, NewBusinessRuleError("attempt_has_questions", "attempt has no questions", map[string]interface{}{
			"attempt_id": attemptID,
			"test_id":    attempt.TestID,
		})
	}
	if err := s.deps.Validator.Question().ValidateBatch(attempt.Questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttemptInvalid, err)
	}

	saved := s.freshestProgress(ctx, attempt)

	sess := session.New(attemptID, session.Options{
		Clock:             s.clock,
		EncodeConcurrency: s.deps.Config.EncodeConcurrency,
		MaxFileSize:       s.deps.Config.MaxFileSize,
		Logger:            utils.NewSlogLogger(s.logger),
	})
	report, err := sess.Initialize(saved, attempt.Questions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttemptInvalid, err)
	}

	owner := userID
	if owner == "" {
		owner = attempt.StudentID
	}
	open := &openAttempt{attempt: attempt, userID: owner, session: sess, report: report}

	s.mu.Lock()
	s.sessions[attemptID] = open
	s.mu.Unlock()
	monitoring.OpenSessions.Inc()

	s.publish(ctx, events.NewAttemptOpenedEvent(events.AttemptOpenedEvent{
		AttemptID:     attemptID,
		TestID:        attempt.TestID,
		UserID:        owner,
		QuestionCount: len(attempt.Questions),
		Restored:      len(report.Restored),
		EndsAt:        attempt.EndsAt(),
	}))

	return s.buildView(open), nil
}

func (s *attemptSessionService) Get(ctx context.Context, attemptID, userID string) (*SessionView, error) {
	open, err := s.session(attemptID, userID, "view")
	if err != nil {
		return nil, err
	}
	return s.buildView(open), nil
}

// ===== ANSWER STATE =====

func (s *attemptSessionService) RecordAnswer(ctx context.Context, attemptID, userID, questionKey string, req *RecordAnswerRequest) (state *models.AnswerState, err error) {
	op := s.ops.WithOperation(ctx, "record_answer", userID, attemptID)
	defer func() { op.LogResult(err) }()

	if err := s.deps.Validator.Validate(req); err != nil {
		return nil, err
	}
	open, err := s.session(attemptID, userID, "answer")
	if err != nil {
		return nil, err
	}

	sess := open.session
	err = s.mutate(open, func() error {
		switch req.QuestionType {
		case models.MultipleChoice:
			var option models.Option
			if req.Option != nil {
				option = *req.Option
			}
			return sess.RecordMultipleChoice(questionKey, option)
		case models.ShortAnswer:
			return sess.RecordShortAnswer(questionKey, deref(req.Text))
		case models.LongAnswer:
			return sess.RecordLongAnswer(questionKey, deref(req.Text))
		case models.Drawing:
			return sess.RecordDrawing(questionKey, req.Drawing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return answerState(sess, questionKey)
}

func (s *attemptSessionService) Navigate(ctx context.Context, attemptID, userID, questionKey string) error {
	open, err := s.session(attemptID, userID, "navigate")
	if err != nil {
		return err
	}
	return open.session.Navigate(questionKey)
}

func (s *attemptSessionService) ToggleReview(ctx context.Context, attemptID, userID, questionKey string) (bool, error) {
	open, err := s.session(attemptID, userID, "review")
	if err != nil {
		return false, err
	}

	var flagged bool
	err = s.mutate(open, func() (err error) {
		flagged, err = open.session.ToggleReview(questionKey)
		return err
	})
	return flagged, err
}

func (s *attemptSessionService) SetCompletion(ctx context.Context, attemptID, userID, questionKey string, completed bool) error {
	open, err := s.session(attemptID, userID, "complete")
	if err != nil {
		return err
	}
	return s.mutate(open, func() error {
		return open.session.SetCompletion(questionKey, completed)
	})
}

func (s *attemptSessionService) AddFiles(ctx context.Context, attemptID, userID, questionKey string, uploads []models.Upload) (result *session.AddFilesResult, err error) {
	op := s.ops.WithOperation(ctx, "add_files", userID, attemptID)
	defer func() { op.LogResult(err) }()

	open, err := s.session(attemptID, userID, "attach")
	if err != nil {
		return nil, err
	}

	var added session.AddFilesResult
	err = s.mutate(open, func() (err error) {
		added, err = open.session.AddFiles(ctx, questionKey, uploads)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, failed := range added.Failed {
		monitoring.AttachmentFailures.Inc()
		s.publish(ctx, events.NewAttachmentFailedEvent(events.AttachmentFailedEvent{
			AttemptID:   attemptID,
			QuestionKey: questionKey,
			Filename:    failed.Key.Filename,
			Error:       failed.Error,
		}))
	}
	return &added, nil
}

func (s *attemptSessionService) RemoveFile(ctx context.Context, attemptID, userID, questionKey, filename string) (bool, error) {
	open, err := s.session(attemptID, userID, "detach")
	if err != nil {
		return false, err
	}

	var removed bool
	err = s.mutate(open, func() (err error) {
		removed, err = open.session.RemoveFile(questionKey, filename)
		return err
	})
	return removed, err
}

func (s *attemptSessionService) Preview(ctx context.Context, attemptID, userID string) (models.SubmissionPayload, error) {
	open, err := s.session(attemptID, userID, "preview")
	if err != nil {
		return nil, err
	}
	return open.session.Assemble(), nil
}

// ===== PERSISTENCE =====

// Save pushes the current answers to the backend. The local Redis copy is written
// first so a resumed session recovers progress even when the backend call fails.
func (s *attemptSessionService) Save(ctx context.Context, attemptID, userID string) (err error) {
	op := s.ops.WithOperation(ctx, "save", userID, attemptID)
	defer func() { op.LogResult(err) }()

	open, err := s.session(attemptID, userID, "save")
	if err != nil {
		return err
	}
	return s.save(ctx, open)
}

func (s *attemptSessionService) save(ctx context.Context, open *openAttempt) error {
	open.saveMu.Lock()
	defer open.saveMu.Unlock()

	sess := open.session
	attemptID := open.attempt.ID
	if _, ok := s.lookup(attemptID); !ok {
		return ErrSessionNotOpen
	}

	revision := sess.BeginSave()
	payload := sess.Assemble()
	saved := sess.KeyMap().SavedFromPayload(payload)

	if err := s.deps.Cache.Set(ctx, cache.ProgressKey(attemptID), saved, s.deps.Config.ProgressCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache progress", "attempt_id", attemptID, "error", err)
	}

	err := s.deps.Backend.SaveProgress(ctx, attemptID, saved)
	sess.FinishSave(revision, err)
	if err != nil {
		monitoring.AutosaveCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: save progress: %w", ErrBackendFailure, err)
	}
	monitoring.AutosaveCounter.WithLabelValues("success").Inc()

	snapshot, err := newProgressSnapshot(open, saved, payload, s.clock())
	if err == nil {
		err = s.deps.Snapshots.CreateSnapshot(ctx, snapshot)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to store progress snapshot", "attempt_id", attemptID, "error", err)
	}

	s.publish(ctx, events.NewProgressSavedEvent(events.ProgressSavedEvent{
		AttemptID:     attemptID,
		UserID:        open.userID,
		AnsweredCount: payload.AnsweredCount(),
		TotalSeconds:  payload.TotalSeconds(),
	}))
	return nil
}

// ===== SUBMISSION =====

func (s *attemptSessionService) Submit(ctx context.Context, attemptID, userID, reason string) (resp *SubmitResponse, err error) {
	op := s.ops.WithOperation(ctx, "submit", userID, attemptID)
	defer func() { op.LogResult(err) }()

	if reason == "" {
		reason = models.EndReasonSubmitted
	}
	if err := s.deps.Validator.Validate(&SubmitRequest{Reason: reason}); err != nil {
		return nil, err
	}

	open, err := s.session(attemptID, userID, "submit")
	if err != nil {
		if errors.Is(err, ErrSessionNotOpen) {
			if done, _ := s.deps.Snapshots.HasSubmission(ctx, attemptID); done {
				return nil, ErrAttemptAlreadySubmitted
			}
		}
		return nil, err
	}
	return s.submit(ctx, open, reason)
}

// HandleTimeout submits the attempt the same way a student would, with the time_out reason
func (s *attemptSessionService) HandleTimeout(ctx context.Context, attemptID string) (*SubmitResponse, error) {
	open, ok := s.lookup(attemptID)
	if !ok {
		return nil, ErrSessionNotOpen
	}
	return s.submit(ctx, open, models.EndReasonTimeout)
}

func (s *attemptSessionService) submit(ctx context.Context, open *openAttempt, reason string) (*SubmitResponse, error) {
	if !open.submitMu.TryLock() {
		return nil, ErrSubmissionInProgress
	}
	defer open.submitMu.Unlock()

	attemptID := open.attempt.ID
	if _, ok := s.lookup(attemptID); !ok {
		return nil, ErrAttemptAlreadySubmitted
	}

	payload := s.beginSubmit(open, reason)
	result, err := s.deps.Backend.Submit(ctx, attemptID, payload)
	if err != nil {
		s.abortSubmit(open)
		return nil, fmt.Errorf("%w: submit: %w", ErrBackendFailure, err)
	}
	submittedAt := s.clock()
	if err := open.session.Navigate(""); err != nil {
		s.logger.WarnContext(ctx, "Failed to stop time tracking", "attempt_id", attemptID, "error", err)
	}

	locations := s.archiveAttachments(ctx, open)

	record, err := newSubmissionRecord(open, payload, locations, reason, result, submittedAt)
	if err == nil {
		err = s.deps.Snapshots.CreateSubmission(ctx, record)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store submission record", "attempt_id", attemptID, "error", err)
	}

	open.saveMu.Lock()
	s.unregister(ctx, attemptID)
	open.saveMu.Unlock()
	monitoring.SubmissionCounter.WithLabelValues(reason).Inc()

	response := &SubmitResponse{
		AttemptID:     attemptID,
		Reason:        reason,
		QuestionCount: len(payload),
		AnsweredCount: payload.AnsweredCount(),
		TotalSeconds:  payload.TotalSeconds(),
		Result:        result,
	}

	s.publish(ctx, events.NewAttemptSubmittedEvent(events.AttemptSubmittedEvent{
		AttemptID:     attemptID,
		TestID:        open.attempt.TestID,
		UserID:        open.userID,
		Reason:        reason,
		SubmittedAt:   submittedAt,
		QuestionCount: response.QuestionCount,
		AnsweredCount: response.AnsweredCount,
		TotalSeconds:  response.TotalSeconds,
		Score:         score(result),
	}, reason == models.EndReasonTimeout))

	return response, nil
}

// ===== SWEEPS =====

// AutoSaveDirty saves every session with unsaved changes and returns how many were saved
func (s *attemptSessionService) AutoSaveDirty(ctx context.Context) int {
	saved := 0
	for _, open := range s.snapshotSessions() {
		if !open.session.Dirty() || open.session.Saving() {
			continue
		}
		if err := s.save(ctx, open); err != nil {
			if errors.Is(err, ErrSessionNotOpen) {
				continue
			}
			s.logger.WarnContext(ctx, "Auto-save failed", "attempt_id", open.attempt.ID, "error", err)
			continue
		}
		saved++
	}
	return saved
}

// SubmitExpired submits every session whose time limit has passed
func (s *attemptSessionService) SubmitExpired(ctx context.Context) int {
	now := s.clock()
	submitted := 0
	for _, open := range s.snapshotSessions() {
		end := open.attempt.EndsAt()
		if end == nil || now.Before(*end) {
			continue
		}
		if _, err := s.submit(ctx, open, models.EndReasonTimeout); err != nil {
			s.logger.WarnContext(ctx, "Timed-out submission failed", "attempt_id", open.attempt.ID, "error", err)
			continue
		}
		submitted++
	}
	return submitted
}

// Shutdown saves dirty sessions one last time
func (s *attemptSessionService) Shutdown(ctx context.Context) {
	saved := s.AutoSaveDirty(ctx)
	s.logger.Info("Attempt sessions flushed", "saved", saved)
}
