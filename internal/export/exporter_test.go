package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/prepstation/capture-service/internal/models"
)

type fakeSource struct {
	rows      []*models.StoredResponse
	questions map[uint]*models.SessionQuestion
}

func (f *fakeSource) ListBySession(_ context.Context, _ uint) ([]*models.StoredResponse, error) {
	return f.rows, nil
}

func (f *fakeSource) GetSessionQuestion(_ context.Context, id uint) (*models.SessionQuestion, error) {
	return f.questions[id], nil
}

func TestExportSessionResponsesRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	source := &fakeSource{
		rows: []*models.StoredResponse{
			{
				QuestionID:        101,
				SessionQuestionID: 1,
				ResponseType:      models.ResponseText,
				Payload:           datatypes.JSON(`{"text":"photosynthesis converts light"}`),
				Submitted:         true,
				UpdatedAt:         now,
			},
			{
				QuestionID:        102,
				SessionQuestionID: 2,
				ResponseType:      models.ResponseAudioRecording,
				Payload:           datatypes.JSON(`{}`),
				AudioData:         make([]byte, 32044),
				AudioMimeType:     "audio/wav",
				AudioDuration:     1.0,
				UpdatedAt:         now,
			},
		},
		questions: map[uint]*models.SessionQuestion{
			1: {ID: 1, Position: 1, Question: models.Question{Title: "Explain photosynthesis"}},
			2: {ID: 2, Position: 2, Question: models.Question{Title: "Read the passage aloud"}},
		},
	}

	e := NewExporter(source, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)})))
	data, err := e.ExportSessionResponses(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two responses")

	assert.Equal(t, "Question", rows[0][1])
	assert.Equal(t, "Explain photosynthesis", rows[1][1])
	assert.Equal(t, "photosynthesis converts light", rows[1][3])
	assert.Equal(t, "Read the passage aloud", rows[2][1])
	assert.Contains(t, rows[2][3], "recording: 1.0s")
}
