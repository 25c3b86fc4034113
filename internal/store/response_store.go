// Package store is the gorm-backed Response API implementation.
// Renderers persist through it via the draft.Persister interface.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prepstation/capture-service/internal/models"
)

var ErrResponseNotFound = errors.New("response not found")

type ResponseStore struct {
	db *gorm.DB
}

func NewResponseStore(db *gorm.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

// Persist upserts the response row for the envelope's session question
// and marks the session question as attempted.
func (s *ResponseStore) Persist(ctx context.Context, env *models.ResponseEnvelope) error {
	row, err := rowFromEnvelope(env)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"response_type", "payload",
				"audio_data", "audio_mime_type", "audio_duration",
				"updated_at",
			}),
		}).Create(row).Error; err != nil {
			return fmt.Errorf("failed to persist response: %w", err)
		}

		now := time.Now()
		return tx.Model(&models.SessionQuestion{}).
			Where("id = ? AND attempted = false", env.SessionQuestionID).
			Updates(map[string]interface{}{
				"attempted":    true,
				"attempted_at": now,
			}).Error
	})
}

// MarkSubmitted finalizes the stored response and completes the
// session question.
func (s *ResponseStore) MarkSubmitted(ctx context.Context, sessionQuestionID uint) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.StoredResponse{}).
			Where("session_question_id = ?", sessionQuestionID).
			Updates(map[string]interface{}{
				"submitted":    true,
				"submitted_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark response submitted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrResponseNotFound
		}

		return tx.Model(&models.SessionQuestion{}).
			Where("id = ?", sessionQuestionID).
			Updates(map[string]interface{}{
				"completed":    true,
				"completed_at": now,
			}).Error
	})
}

// GetBySessionQuestion returns the stored response for one session
// question.
func (s *ResponseStore) GetBySessionQuestion(ctx context.Context, sessionQuestionID uint) (*models.StoredResponse, error) {
	var row models.StoredResponse
	if err := s.db.WithContext(ctx).
		Where("session_question_id = ?", sessionQuestionID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResponseNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ListBySession returns every stored response for a session in
// question order.
func (s *ResponseStore) ListBySession(ctx context.Context, sessionID uint) ([]*models.StoredResponse, error) {
	var rows []*models.StoredResponse
	if err := s.db.WithContext(ctx).
		Joins("JOIN session_questions sq ON sq.id = responses.session_question_id").
		Where("sq.session_id = ?", sessionID).
		Order("sq.position").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetSessionQuestion loads a session question with its question,
// options, type and media preloaded.
func (s *ResponseStore) GetSessionQuestion(ctx context.Context, id uint) (*models.SessionQuestion, error) {
	var sq models.SessionQuestion
	if err := s.db.WithContext(ctx).
		Preload("Question").
		Preload("Question.QuestionType").
		Preload("Question.Options").
		Preload("Question.Media").
		Preload("Question.Media.Media").
		First(&sq, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResponseNotFound
		}
		return nil, err
	}
	return &sq, nil
}

func rowFromEnvelope(env *models.ResponseEnvelope) (*models.StoredResponse, error) {
	payload := struct {
		SelectedOptionIDs []uint            `json:"selected_option_ids,omitempty"`
		Text              string            `json:"text,omitempty"`
		BlankAnswers      map[string]string `json:"blank_answers,omitempty"`
	}{
		SelectedOptionIDs: env.SelectedOptionIDs,
		Text:              env.Text,
		BlankAnswers:      env.BlankAnswers,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response payload: %w", err)
	}

	row := &models.StoredResponse{
		QuestionID:        env.QuestionID,
		SessionQuestionID: env.SessionQuestionID,
		ResponseType:      env.ResponseType,
		Payload:           datatypes.JSON(raw),
	}
	if env.Audio != nil && !env.Audio.Empty() {
		row.AudioData = env.Audio.Data
		row.AudioMimeType = env.Audio.MimeType
		row.AudioDuration = env.Audio.Duration.Seconds()
	}
	return row, nil
}
