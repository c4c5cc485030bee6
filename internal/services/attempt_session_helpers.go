package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/backend"
	"github.com/SAP-F-2025/attempt-session-service/internal/cache"
	"github.com/SAP-F-2025/attempt-session-service/internal/events"
	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/session"
	"github.com/SAP-F-2025/attempt-session-service/internal/storage"
	"github.com/SAP-F-2025/attempt-session-service/pkg/monitoring"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const archiveConcurrency = 4

func (s *attemptSessionService) openLock(attemptID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.opening[attemptID]
	if !ok {
		lock = &sync.Mutex{}
		s.opening[attemptID] = lock
	}
	return lock
}

func (s *attemptSessionService) lookup(attemptID string) (*openAttempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	open, ok := s.sessions[attemptID]
	return open, ok
}

// session returns the open attempt after checking that userID owns it
func (s *attemptSessionService) session(attemptID, userID, action string) (*openAttempt, error) {
	open, ok := s.lookup(attemptID)
	if !ok {
		return nil, ErrSessionNotOpen
	}
	if err := checkOwner(open, userID, action); err != nil {
		return nil, err
	}
	return open, nil
}

func checkOwner(open *openAttempt, userID, action string) error {
	if open.userID == "" || userID == open.userID {
		return nil
	}
	return NewPermissionError(userID, open.attempt.ID, "attempt", action, "attempt belongs to another student")
}

// ensureActive rejects changes once the time limit has passed
func (s *attemptSessionService) ensureActive(open *openAttempt) error {
	if end := open.attempt.EndsAt(); end != nil && !s.clock().Before(*end) {
		return ErrAttemptTimeExpired
	}
	return nil
}

// mutate applies an answer or attachment change unless the attempt is being
// submitted or its time limit has passed
func (s *attemptSessionService) mutate(open *openAttempt, change func() error) error {
	open.stateMu.RLock()
	defer open.stateMu.RUnlock()

	if open.submitting {
		return ErrSubmissionInProgress
	}
	if err := s.ensureActive(open); err != nil {
		return err
	}
	return change()
}

// beginSubmit blocks further changes and takes the payload to send. A timeout
// freezes the clock at once; a student submission keeps time running until the
// backend accepts it.
func (s *attemptSessionService) beginSubmit(open *openAttempt, reason string) models.SubmissionPayload {
	open.stateMu.Lock()
	defer open.stateMu.Unlock()

	open.submitting = true
	if reason == models.EndReasonTimeout {
		return open.session.Finalize()
	}
	return open.session.Assemble()
}

func (s *attemptSessionService) abortSubmit(open *openAttempt) {
	open.stateMu.Lock()
	open.submitting = false
	open.stateMu.Unlock()
}

func (s *attemptSessionService) snapshotSessions() []*openAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*openAttempt, 0, len(s.sessions))
	for _, open := range s.sessions {
		list = append(list, open)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].attempt.ID < list[j].attempt.ID })
	return list
}

func (s *attemptSessionService) unregister(ctx context.Context, attemptID string) {
	s.mu.Lock()
	open, ok := s.sessions[attemptID]
	delete(s.sessions, attemptID)
	delete(s.opening, attemptID)
	s.mu.Unlock()

	if !ok {
		return
	}
	open.session.Close()
	monitoring.OpenSessions.Dec()

	for _, key := range []string{cache.AttemptKey(attemptID), cache.ProgressKey(attemptID)} {
		if err := s.deps.Cache.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Failed to drop cached attempt data", "key", key, "error", err)
		}
	}
}

func (s *attemptSessionService) fetchAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	var cached models.Attempt
	err := s.deps.Cache.Get(ctx, cache.AttemptKey(attemptID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "Attempt cache unavailable", "attempt_id", attemptID, "error", err)
	}

	attempt, err := s.deps.Backend.FetchAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, backend.ErrAttemptNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("%w: fetch attempt: %w", ErrBackendFailure, err)
	}

	if err := s.deps.Cache.Set(ctx, cache.AttemptKey(attemptID), attempt, s.deps.Config.AttemptCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache attempt", "attempt_id", attemptID, "error", err)
	}
	return attempt, nil
}

// freshestProgress prefers the locally cached progress over the backend's saved answers
func (s *attemptSessionService) freshestProgress(ctx context.Context, attempt *models.Attempt) models.SavedAnswers {
	var saved models.SavedAnswers
	if err := s.deps.Cache.Get(ctx, cache.ProgressKey(attempt.ID), &saved); err == nil {
		s.logger.DebugContext(ctx, "Restoring cached progress", "attempt_id", attempt.ID, "answers", len(saved))
		return saved
	}
	return attempt.SavedAnswers
}

func (s *attemptSessionService) publish(ctx context.Context, event *events.AttemptEvent) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.PublishEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func (s *attemptSessionService) buildView(open *openAttempt) *SessionView {
	sess := open.session
	view := &SessionView{
		AttemptID:   open.attempt.ID,
		TestID:      open.attempt.TestID,
		Title:       open.attempt.Title,
		SavedStatus: sess.Status(),
		Questions:   sess.State(),
		Skipped:     open.report.Skipped,
	}

	for _, q := range view.Questions {
		if q.Completed {
			view.CompletedCount++
		}
		if q.Review {
			view.ReviewCount++
		}
	}

	if end := open.attempt.EndsAt(); end != nil {
		view.EndsAt = end
		remaining := int(math.Max(0, math.Ceil(end.Sub(s.clock()).Seconds())))
		view.RemainingSeconds = &remaining
	}

	for _, state := range sess.Processing() {
		view.Processing = append(view.Processing, state)
	}
	sort.Slice(view.Processing, func(i, j int) bool {
		return view.Processing[i].Key.String() < view.Processing[j].Key.String()
	})

	return view
}

func answerState(sess *session.Session, questionKey string) (*models.AnswerState, error) {
	for _, state := range sess.State() {
		if state.LocalKey == questionKey {
			return &state, nil
		}
	}
	return nil, session.ErrUnknownQuestion
}

// archiveAttachments copies every essay attachment to the archive. Failures are
// logged and leave the attachment without a location.
func (s *attemptSessionService) archiveAttachments(ctx context.Context, open *openAttempt) map[string][]string {
	var mu sync.Mutex
	locations := make(map[string][]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveConcurrency)

	for _, q := range open.session.Questions() {
		if !q.Type.AcceptsAttachments() {
			continue
		}
		files := open.session.Files(q.LocalKey)
		if len(files) == 0 {
			continue
		}
		locations[q.LocalKey] = make([]string, len(files))

		for i, file := range files {
			g.Go(func() error {
				name := storage.ObjectName(open.attempt.ID, q.LocalKey, fmt.Sprintf("%02d-%s", i+1, file.Filename))
				location, err := s.deps.Archive.Put(gctx, name, file.Data, file.MIMEType)
				if err != nil {
					s.logger.WarnContext(ctx, "Failed to archive attachment",
						"attempt_id", open.attempt.ID,
						"question", q.LocalKey,
						"filename", file.Filename,
						"error", err)
					return nil
				}
				mu.Lock()
				locations[q.LocalKey][i] = location
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	return locations
}

func newProgressSnapshot(open *openAttempt, saved models.SavedAnswers, payload models.SubmissionPayload, now time.Time) (*models.ProgressSnapshot, error) {
	answers, err := json.Marshal(saved)
	if err != nil {
		return nil, err
	}
	return &models.ProgressSnapshot{
		AttemptID:     open.attempt.ID,
		UserID:        open.userID,
		Answers:       datatypes.JSON(answers),
		AnsweredCount: payload.AnsweredCount(),
		TotalSeconds:  payload.TotalSeconds(),
		CreatedAt:     now,
	}, nil
}

// newSubmissionRecord stores the payload with image bytes replaced by their archive location
func newSubmissionRecord(open *openAttempt, payload models.SubmissionPayload, locations map[string][]string, reason string, result *models.SubmitResult, now time.Time) (*models.SubmissionRecord, error) {
	stored := make(models.SubmissionPayload, len(payload))
	for key, entry := range payload {
		if len(entry.Base64Images) > 0 {
			images := make([]models.Base64Image, len(entry.Base64Images))
			for i, img := range entry.Base64Images {
				images[i] = models.Base64Image{Filename: img.Filename, MIMEType: img.MIMEType}
				if i < len(locations[key]) {
					images[i].Data = locations[key][i]
				}
			}
			entry.Base64Images = images
		}
		stored[key] = entry
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}

	record := &models.SubmissionRecord{
		AttemptID:     open.attempt.ID,
		UserID:        open.userID,
		Reason:        reason,
		Payload:       datatypes.JSON(data),
		QuestionCount: len(payload),
		AnsweredCount: payload.AnsweredCount(),
		TotalSeconds:  payload.TotalSeconds(),
		SubmittedAt:   now,
	}
	if result != nil {
		record.RemoteStatus = result.Status
	}
	return record, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func score(result *models.SubmitResult) *float64 {
	if result == nil {
		return nil
	}
	return result.Score
}
