package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prepstation/capture-service/internal/renderers"
	"github.com/prepstation/capture-service/internal/services"
	"github.com/prepstation/capture-service/internal/utils"
)

// CaptureHandler exposes the per-question capture lifecycle over HTTP.
type CaptureHandler struct {
	BaseHandler
	capture services.CaptureService
}

func NewCaptureHandler(capture services.CaptureService, logger utils.Logger) *CaptureHandler {
	return &CaptureHandler{
		BaseHandler: NewBaseHandler(logger),
		capture:     capture,
	}
}

// Activate makes a session question the active capture target.
// POST /api/v1/capture/questions/:session_question_id/activate
func (h *CaptureHandler) Activate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("session_question_id"), 10, 32)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid session question id", err)
		return
	}

	view, err := h.capture.Activate(c.Request.Context(), uint(id))
	if err != nil {
		h.respondServiceError(c, err, "failed to activate question")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "question activated", view)
}

// Input applies one edit to the active question.
// POST /api/v1/capture/input
func (h *CaptureHandler) Input(c *gin.Context) {
	var ev renderers.InputEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid input event", err)
		return
	}

	view, err := h.capture.Input(c.Request.Context(), ev)
	if err != nil {
		h.respondServiceError(c, err, "failed to apply input")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "input applied", view)
}

// View returns the current render model for the active question.
// GET /api/v1/capture/view
func (h *CaptureHandler) View(c *gin.Context) {
	view, err := h.capture.View(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "failed to build view")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "current view", view)
}

type prepUpdateRequest struct {
	// Remaining is the externally driven preparation countdown in
	// seconds. Null means the countdown was withdrawn.
	Remaining *int `json:"remaining"`
}

// PrepUpdate forwards a shared preparation countdown tick.
// POST /api/v1/capture/prep
func (h *CaptureHandler) PrepUpdate(c *gin.Context) {
	var req prepUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid prep update", err)
		return
	}

	if err := h.capture.ExternalPrepUpdate(req.Remaining); err != nil {
		h.respondServiceError(c, err, "failed to apply prep update")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "prep update applied", nil)
}

// Submit finalizes the active question's response.
// POST /api/v1/capture/submit
func (h *CaptureHandler) Submit(c *gin.Context) {
	if err := h.capture.Submit(c.Request.Context()); err != nil {
		h.respondServiceError(c, err, "failed to submit response")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "response submitted", nil)
}

// Abandon discards the active question's draft.
// POST /api/v1/capture/abandon
func (h *CaptureHandler) Abandon(c *gin.Context) {
	if err := h.capture.Abandon(c.Request.Context()); err != nil {
		h.respondServiceError(c, err, "failed to abandon question")
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "question abandoned", nil)
}

// respondServiceError maps service error classes to HTTP statuses.
func (h *CaptureHandler) respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, message, err)
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, message, err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, message, err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, message, err)
	}
}
