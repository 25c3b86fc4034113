package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prepstation/capture-service/internal/export"
	"github.com/prepstation/capture-service/internal/utils"
)

type ExportHandler struct {
	BaseHandler
	exporter *export.Exporter
}

func NewExportHandler(exporter *export.Exporter, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler: NewBaseHandler(logger),
		exporter:    exporter,
	}
}

// ExportSession streams the session's responses as an xlsx workbook.
// GET /api/v1/sessions/:session_id/export
func (h *ExportHandler) ExportSession(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("session_id"), 10, 32)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid session id", err)
		return
	}

	data, err := h.exporter.ExportSessionResponses(c.Request.Context(), uint(id))
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "failed to export session responses", err)
		return
	}

	filename := fmt.Sprintf("session_%d_responses.xlsx", id)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
