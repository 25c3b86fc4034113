// Package draft holds the in-progress answer for the active question
// and coalesces rapid edits into infrequent persistence calls.
package draft

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prepstation/capture-service/internal/models"
)

// DefaultQuietPeriod is the trailing debounce window measured from the
// most recent edit.
const DefaultQuietPeriod = time.Second

var (
	ErrEmptyClip = errors.New("zero-length recording is not a valid answer")
	ErrDropped   = errors.New("draft store already dropped")
)

// Persister is the external Response API boundary.
type Persister interface {
	Persist(ctx context.Context, env *models.ResponseEnvelope) error
}

// PersistFunc adapts a function to Persister.
type PersistFunc func(ctx context.Context, env *models.ResponseEnvelope) error

func (f PersistFunc) Persist(ctx context.Context, env *models.ResponseEnvelope) error {
	return f(ctx, env)
}

// Store owns exactly one draft for the currently active question.
// Every edit lands in memory immediately and schedules a debounced
// persist; Flush bypasses the debounce on submit. The timer path and
// the flush path funnel through one single-writer persist function so
// a draft is never written twice for one quiet period.
type Store struct {
	persister Persister
	logger    *slog.Logger
	quiet     time.Duration

	mu      sync.Mutex
	draft   *models.ResponseDraft
	pending *time.Timer
	dirty   bool
	gen     uint64
	dropped bool
}

// NewStore builds the store for one active question. The response
// type is the dispatcher-resolved shape, which the draft must match.
func NewStore(questionID, sessionQuestionID uint, rt models.ResponseType, persister Persister, logger *slog.Logger) *Store {
	return NewStoreWithQuietPeriod(questionID, sessionQuestionID, rt, persister, logger, DefaultQuietPeriod)
}

func NewStoreWithQuietPeriod(questionID, sessionQuestionID uint, rt models.ResponseType, persister Persister, logger *slog.Logger, quiet time.Duration) *Store {
	return &Store{
		persister: persister,
		logger:    logger,
		quiet:     quiet,
		draft: &models.ResponseDraft{
			QuestionID:        questionID,
			SessionQuestionID: sessionQuestionID,
			ResponseType:      rt,
		},
	}
}

// Draft returns a snapshot of the current draft.
func (s *Store) Draft() *models.ResponseDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// SelectOne assigns a one-element selection, replacing any previous
// choice. Single-select semantics.
func (s *Store) SelectOne(optionID uint) {
	s.edit(func(d *models.ResponseDraft) {
		d.SelectedOptionIDs = []uint{optionID}
	})
}

// Toggle flips an option's membership in the selection set.
// Multi-select semantics: toggling an unselected option adds it,
// toggling a selected one removes it.
func (s *Store) Toggle(optionID uint) {
	s.edit(func(d *models.ResponseDraft) {
		for i, id := range d.SelectedOptionIDs {
			if id == optionID {
				d.SelectedOptionIDs = append(d.SelectedOptionIDs[:i], d.SelectedOptionIDs[i+1:]...)
				return
			}
		}
		d.SelectedOptionIDs = append(d.SelectedOptionIDs, optionID)
	})
}

// SetText replaces the free-text answer.
func (s *Store) SetText(text string) {
	s.edit(func(d *models.ResponseDraft) {
		d.Text = text
	})
}

// SetBlank updates one blank slot, leaving every other key untouched.
func (s *Store) SetBlank(blankID, value string) {
	s.edit(func(d *models.ResponseDraft) {
		if d.BlankAnswers == nil {
			d.BlankAnswers = make(map[string]string)
		}
		d.BlankAnswers[blankID] = value
	})
}

// SetClip installs a finalized recording. Zero-length captures are
// rejected as "no response".
func (s *Store) SetClip(clip models.AudioClip) error {
	if clip.Empty() {
		return ErrEmptyClip
	}
	s.edit(func(d *models.ResponseDraft) {
		c := clip
		d.Audio = &c
	})
	return nil
}

// ClearClip discards a previously captured recording (re-record).
func (s *Store) ClearClip() {
	s.edit(func(d *models.ResponseDraft) {
		d.Audio = nil
	})
}

// edit applies a mutation under lock and (re)schedules the debounced
// persist. Each new edit cancels the previous schedule.
func (s *Store) edit(mutate func(*models.ResponseDraft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped {
		return
	}
	mutate(s.draft)
	s.draft.UpdatedAt = time.Now()
	s.dirty = true
	s.gen++

	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.quiet, s.autosave)
}

// autosave is the timer path into the single-writer persist.
// Persistence failures here are swallowed; the draft stays dirty and
// the next edit or flush retries, bounding loss to one quiet period.
func (s *Store) autosave() {
	if err := s.persist(context.Background()); err != nil {
		s.logger.Warn("draft autosave failed, will retry on next window", "error", err)
	}
}

// Flush persists synchronously, bypassing the debounce. Used on
// explicit submit; errors propagate and the caller must block
// advancement on them.
func (s *Store) Flush(ctx context.Context) error {
	return s.persist(ctx)
}

// persist is the single writer: both the debounce timer and the flush
// path land here. A clean draft is not rewritten.
func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	if s.dropped {
		s.mu.Unlock()
		return ErrDropped
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	env := s.draft.Envelope()
	gen := s.gen
	s.mu.Unlock()

	if err := s.persister.Persist(ctx, env); err != nil {
		return err
	}

	s.mu.Lock()
	// An edit that landed while the write was in flight keeps the
	// draft dirty for the next window.
	if s.gen == gen {
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

// Drop cancels any pending persistence and retires the store. Used on
// question abandonment: pending work is dropped, not flushed.
func (s *Store) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.dirty = false
}
