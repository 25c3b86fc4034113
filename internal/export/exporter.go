// Package export renders a session's captured responses to an xlsx
// workbook for review outside the service.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/prepstation/capture-service/internal/models"
)

const sheetName = "Responses"

// ResponseSource provides the stored rows the exporter reads.
type ResponseSource interface {
	ListBySession(ctx context.Context, sessionID uint) ([]*models.StoredResponse, error)
	GetSessionQuestion(ctx context.Context, id uint) (*models.SessionQuestion, error)
}

type Exporter struct {
	source ResponseSource
	logger *slog.Logger
}

func NewExporter(source ResponseSource, logger *slog.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

// ExportSessionResponses builds an xlsx workbook with one row per
// captured response. Audio answers are summarized by duration and
// size; the clip bytes stay in storage.
func (e *Exporter) ExportSessionResponses(ctx context.Context, sessionID uint) ([]byte, error) {
	rows, err := e.source.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session responses: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Position", "Question", "Response Type", "Answer", "Submitted", "Updated At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, row := range rows {
		title, position := e.questionInfo(ctx, row.SessionQuestionID)
		values := []interface{}{
			position,
			title,
			string(row.ResponseType),
			summarizeAnswer(row),
			row.Submitted,
			row.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	e.logger.Info("exported session responses", "session_id", sessionID, "rows", len(rows))
	return buf.Bytes(), nil
}

func (e *Exporter) questionInfo(ctx context.Context, sessionQuestionID uint) (string, int) {
	sq, err := e.source.GetSessionQuestion(ctx, sessionQuestionID)
	if err != nil {
		e.logger.Warn("question lookup failed during export",
			"session_question_id", sessionQuestionID, "error", err)
		return fmt.Sprintf("session question %d", sessionQuestionID), 0
	}
	return sq.Question.Title, sq.Position
}

// summarizeAnswer renders the stored payload as a single cell value.
func summarizeAnswer(row *models.StoredResponse) string {
	switch row.ResponseType {
	case models.ResponseAudioRecording:
		if len(row.AudioData) == 0 {
			return "no recording"
		}
		return fmt.Sprintf("recording: %.1fs, %d bytes (%s)",
			row.AudioDuration, len(row.AudioData), row.AudioMimeType)
	default:
		var payload struct {
			SelectedOptionIDs []uint            `json:"selected_option_ids"`
			Text              string            `json:"text"`
			BlankAnswers      map[string]string `json:"blank_answers"`
		}
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return "unreadable payload"
		}
		switch {
		case len(payload.SelectedOptionIDs) > 0:
			return fmt.Sprintf("selected options: %v", payload.SelectedOptionIDs)
		case payload.Text != "":
			return payload.Text
		case len(payload.BlankAnswers) > 0:
			raw, _ := json.Marshal(payload.BlankAnswers)
			return string(raw)
		default:
			return "no answer"
		}
	}
}
