package session

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"golang.org/x/sync/errgroup"
)

const DefaultEncodeConcurrency = 4

// FileStore holds the attachments of each question and the processing state of
// uploads being encoded. Encoding happens outside the lock so other questions
// stay usable while a file is prepared.
type FileStore struct {
	mu          sync.Mutex
	encoder     Encoder
	clock       Clock
	concurrency int

	attachments map[string][]models.FileAttachment
	processing  map[models.ProcessingKey]models.ProcessingState
	// generation changes on Reset so encodes started before it are discarded
	generation uint64
}

type AddFilesResult struct {
	Added  []models.FileInfo        `json:"added"`
	Failed []models.ProcessingState `json:"failed,omitempty"`
	Keys   []models.ProcessingKey   `json:"keys"`
}

func NewFileStore(encoder Encoder, clock Clock, concurrency int) *FileStore {
	if encoder == nil {
		encoder = NewContentEncoder(DefaultMaxFileSize)
	}
	if clock == nil {
		clock = systemClock
	}
	if concurrency <= 0 {
		concurrency = DefaultEncodeConcurrency
	}
	return &FileStore{
		encoder:     encoder,
		clock:       clock,
		concurrency: concurrency,
		attachments: make(map[string][]models.FileAttachment),
		processing:  make(map[models.ProcessingKey]models.ProcessingState),
	}
}

// AddFiles encodes uploads for questionKey and appends the successful ones in
// input order. A failed upload keeps a failure marker under its processing key.
// Encodes are not cancelled when ctx is; they always run to completion.
func (s *FileStore) AddFiles(ctx context.Context, questionKey string, uploads []models.Upload) AddFilesResult {
	result := AddFilesResult{Keys: make([]models.ProcessingKey, len(uploads))}
	if len(uploads) == 0 {
		return result
	}

	s.mu.Lock()
	generation := s.generation
	for i, upload := range uploads {
		key := upload.ProcessingKeyFor(questionKey)
		result.Keys[i] = key
		s.processing[key] = models.ProcessingState{Key: key, Status: models.ProcessingPending}
	}
	s.mu.Unlock()

	encoded := make([]*models.FileAttachment, len(uploads))
	failures := make([]error, len(uploads))

	encodeCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, upload := range uploads {
		g.Go(func() error {
			attachment, err := s.encoder.Encode(encodeCtx, upload)
			if err != nil {
				failures[i] = err
				return nil
			}
			attachment.AddedAt = s.clock()
			encoded[i] = &attachment
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return result
	}

	for i, key := range result.Keys {
		if failures[i] != nil {
			state := models.ProcessingState{Key: key, Status: models.ProcessingFailure, Error: failures[i].Error()}
			s.processing[key] = state
			result.Failed = append(result.Failed, state)
			continue
		}
		s.attachments[questionKey] = append(s.attachments[questionKey], *encoded[i])
		s.processing[key] = models.ProcessingState{Key: key, Status: models.ProcessingSuccess}
		result.Added = append(result.Added, encoded[i].Info())
	}

	return result
}

// RemoveFile removes the first attachment of questionKey named filename.
// It reports whether something was removed and how many attachments remain.
func (s *FileStore) RemoveFile(questionKey, filename string) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.attachments[questionKey]
	idx := slices.IndexFunc(list, func(a models.FileAttachment) bool {
		return a.Filename == filename
	})
	if idx < 0 {
		return false, len(list)
	}

	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(s.attachments, questionKey)
	} else {
		s.attachments[questionKey] = list
	}
	return true, len(list)
}

// Attachments returns a copy of the attachments of questionKey in order of addition
func (s *FileStore) Attachments(questionKey string) []models.FileAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.attachments[questionKey])
}

func (s *FileStore) Count(questionKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attachments[questionKey])
}

// Processing returns a snapshot of every processing marker
func (s *FileStore) Processing() map[models.ProcessingKey]models.ProcessingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.processing)
}

// ProcessingState returns the marker of a single upload
func (s *FileStore) ProcessingState(key models.ProcessingKey) (models.ProcessingState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.processing[key]
	return state, ok
}

func (s *FileStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.attachments)
	clear(s.processing)
	s.generation++
}
