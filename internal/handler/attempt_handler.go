package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/backend"
	"github.com/neudev/attemptd/internal/middleware"
	"github.com/neudev/attemptd/internal/model"
	"github.com/neudev/attemptd/internal/response"
	"github.com/neudev/attemptd/internal/validator"
	"github.com/rs/zerolog"
)

// AttemptHandler exposes attempt managers to a local UI.
type AttemptHandler struct {
	registry *attempt.Registry
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(registry *attempt.Registry, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		registry: registry,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// Start godoc
// POST /api/v1/attempts/:activity_id/start
// Opens (or resumes) the attempt and returns its state. Idempotent.
func (h *AttemptHandler) Start(c *gin.Context) {
	id, activityID, ok := h.params(c)
	if !ok {
		return
	}

	m, err := h.registry.Acquire(id, activityID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := m.Start(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Int64("activity_id", activityID).Msg("Start attempt failed")
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, m.Snapshot())
}

// State godoc
// GET /api/v1/attempts/:activity_id/state
func (h *AttemptHandler) State(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, m.Snapshot())
}

// FocusItem godoc
// POST /api/v1/attempts/:activity_id/focus
func (h *AttemptHandler) FocusItem(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req model.FocusItemRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := m.FocusItem(c.Request.Context(), req.ItemID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m.Snapshot())
}

// AddFile godoc
// POST /api/v1/attempts/:activity_id/files
func (h *AttemptHandler) AddFile(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req model.AddFileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	f, err := m.AddFile(c.Request.Context(), req.FileName, req.Extension)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, f)
}

// EditActiveFile godoc
// PUT /api/v1/attempts/:activity_id/files/active
func (h *AttemptHandler) EditActiveFile(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req model.EditFileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := m.EditActiveFile(c.Request.Context(), req.Content); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenameFile godoc
// PATCH /api/v1/attempts/:activity_id/files/:file_id
func (h *AttemptHandler) RenameFile(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	fileID, ok := fileParam(c)
	if !ok {
		return
	}

	var req model.RenameFileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := m.RenameFile(c.Request.Context(), fileID, req.FileName, req.Extension); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m.Snapshot())
}

// DeleteFile godoc
// DELETE /api/v1/attempts/:activity_id/files/:file_id
func (h *AttemptHandler) DeleteFile(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	fileID, ok := fileParam(c)
	if !ok {
		return
	}

	if err := m.DeleteFile(c.Request.Context(), fileID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m.Snapshot())
}

// SelectFile godoc
// POST /api/v1/attempts/:activity_id/files/:file_id/select
func (h *AttemptHandler) SelectFile(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	fileID, ok := fileParam(c)
	if !ok {
		return
	}

	if err := m.SelectFile(c.Request.Context(), fileID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m.Snapshot())
}

// SelectLanguage godoc
// POST /api/v1/attempts/:activity_id/language
func (h *AttemptHandler) SelectLanguage(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req model.SelectLanguageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := m.SelectLanguage(c.Request.Context(), req.Language); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m.Snapshot())
}

// Run godoc
// POST /api/v1/attempts/:activity_id/run
// Runs the active file once with the given stdin.
func (h *AttemptHandler) Run(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	var req model.RunCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := m.RunCode(c.Request.Context(), req.Input)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Check godoc
// POST /api/v1/attempts/:activity_id/check
// Runs every test case of the selected item and locks the score.
func (h *AttemptHandler) Check(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	res, err := m.CheckItem(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Finish godoc
// POST /api/v1/attempts/:activity_id/finish
// User-confirmed submission.
func (h *AttemptHandler) Finish(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	outcome, err := m.Finish(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// Close godoc
// DELETE /api/v1/attempts/:activity_id
// Teardown: an unsubmitted attempt is submitted, then the manager is released.
func (h *AttemptHandler) Close(c *gin.Context) {
	id, activityID, ok := h.params(c)
	if !ok {
		return
	}

	if err := h.registry.Release(c.Request.Context(), id, activityID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AttemptHandler) params(c *gin.Context) (auth.Identity, int64, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return auth.Identity{}, 0, false
	}

	activityID, err := strconv.ParseInt(c.Param("activity_id"), 10, 64)
	if err != nil || activityID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return auth.Identity{}, 0, false
	}
	return id, activityID, true
}

// manager returns the attempt opened by Start.
func (h *AttemptHandler) manager(c *gin.Context) (*attempt.Manager, bool) {
	id, activityID, ok := h.params(c)
	if !ok {
		return nil, false
	}

	m, ok := h.registry.Get(id, activityID)
	if !ok || !m.Snapshot().Started {
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		return nil, false
	}
	return m, true
}

func fileParam(c *gin.Context) (int, bool) {
	fileID, err := strconv.Atoi(c.Param("file_id"))
	if err != nil || fileID < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return fileID, true
}

// fail maps attempt and backend errors to API error codes.
func (h *AttemptHandler) fail(c *gin.Context, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, attempt.ErrNotStarted), errors.Is(err, attempt.ErrForeignAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, attempt.ErrExpired):
		response.Fail(c, http.StatusConflict, response.ErrAttemptExpired)
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, attempt.ErrAlreadyFinalizing):
		response.Fail(c, http.StatusConflict, response.ErrSubmitInProgress)
	case errors.Is(err, attempt.ErrNoItems):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoItems)
	case errors.Is(err, attempt.ErrNoItemSelected):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoItemSelected)
	case errors.Is(err, attempt.ErrUnknownItem):
		response.Fail(c, http.StatusNotFound, response.ErrItemNotFound)
	case errors.Is(err, attempt.ErrUnknownFile), errors.Is(err, attempt.ErrNoActiveFile):
		response.Fail(c, http.StatusNotFound, response.ErrFileNotFound)
	case errors.Is(err, attempt.ErrLastFile):
		response.Fail(c, http.StatusConflict, response.ErrLastFile)
	case errors.Is(err, attempt.ErrLanguageNotAllowed):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrLanguageNotAllowed)
	case errors.Is(err, attempt.ErrNoRunner):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrRunnerUnavailable)
	case errors.Is(err, attempt.ErrStaleRun):
		response.Fail(c, http.StatusConflict, response.ErrRunSuperseded)
	case errors.Is(err, backend.ErrUnauthorized):
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized)
	case errors.As(err, &apiErr):
		response.FailWithDetail(c, http.StatusBadGateway, response.ErrSubmitFailed, apiErr.Message)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Attempt request failed")
		response.FailWithDetail(c, http.StatusBadGateway, response.ErrBackendUnavailable, err.Error())
	}
}
