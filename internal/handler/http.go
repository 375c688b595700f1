// Package handler — HTTP API редактора: сессии, маска, намерение, отправка
// заданий и просмотр цепочек версий.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"staging-server/internal/mask"
	"staging-server/internal/models"
	"staging-server/internal/notifier"
	"staging-server/internal/service"
	"staging-server/internal/session"
	"staging-server/internal/version"
)

// EditorHandler обрабатывает HTTP запросы редактора изображений.
type EditorHandler struct {
	sessions *session.Manager
	chain    *version.ChainManager
	orch     service.EditOrchestrator
	ws       *notifier.WebSocketHandler
	logger   *zap.Logger
}

// NewEditorHandler создает новый EditorHandler.
func NewEditorHandler(
	sessions *session.Manager,
	chain *version.ChainManager,
	orch service.EditOrchestrator,
	ws *notifier.WebSocketHandler,
	logger *zap.Logger,
) *EditorHandler {
	return &EditorHandler{
		sessions: sessions,
		chain:    chain,
		orch:     orch,
		ws:       ws,
		logger:   logger.Named("EditorHandler"),
	}
}

// RegisterRoutes регистрирует маршруты редактора.
func (h *EditorHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", gin.WrapF(h.ws.ServeWS))

	api := r.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.openSession)
			sessions.GET("/:id", h.getSession)
			sessions.DELETE("/:id", h.closeSession)
			sessions.POST("/:id/mode", h.selectMode)
			sessions.POST("/:id/strokes", h.addStroke)
			sessions.POST("/:id/undo", h.undoStroke)
			sessions.POST("/:id/clear", h.clearMask)
			sessions.PUT("/:id/brush", h.setBrush)
			sessions.PUT("/:id/intent", h.setIntent)
			sessions.POST("/:id/intent/cancel", h.cancelIntent)
			sessions.POST("/:id/submit", h.submit)
			sessions.POST("/:id/confirm-replace", h.confirmReplace)
		}

		images := api.Group("/images")
		{
			images.GET("/:id/versions", h.listVersions)
			images.POST("/:id/retry", h.retryImage)
		}
	}
}

// respondError переводит доменные ошибки в HTTP статусы.
func (h *EditorHandler) respondError(c *gin.Context, err error) {
	apiErr := APIError{Message: err.Error()}

	var status int
	switch {
	case errors.Is(err, models.ErrConfirmationRequired):
		status = http.StatusConflict
		apiErr.ConfirmationRequired = true
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrImageNotFound),
		errors.Is(err, models.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrSessionBusy),
		errors.Is(err, models.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, models.ErrSubmissionFailed),
		errors.Is(err, models.ErrLoadFailed):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		apiErr.Message = "internal server error"
		h.logger.Error("Unhandled handler error", zap.Error(err))
	}

	c.JSON(status, apiErr)
}

func (h *EditorHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *EditorHandler) openSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	s, err := h.sessions.Open(c.Request.Context(), req.ImageID, req.ViewWidth, req.ViewHeight)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *EditorHandler) getSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) closeSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Close(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EditorHandler) selectMode(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req SelectModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := s.SelectMode(models.EditMode(req.Mode)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) addStroke(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req AddStrokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	stroke := mask.Stroke{Points: req.Points, Width: req.Width, Tag: mask.StrokeTag(req.Tag)}
	if err := s.AddStroke(stroke); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) undoStroke(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := s.Undo(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) clearMask(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := s.ClearMask(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) setBrush(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req SetBrushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := s.SetBrushWidth(req.Width); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) setIntent(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req SetIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := s.SetIntent(req.Description, req.ToObjectSpec()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) cancelIntent(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := s.CancelIntent(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *EditorHandler) submit(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	// Пустое тело допустимо: replaceNewer по умолчанию false
	var req SubmitRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.sessions.Submit(c.Request.Context(), id, req.ReplaceNewer)
	if err != nil {
		if result != nil {
			// Запись версии создана, но отправка в очередь не удалась
			c.JSON(http.StatusBadGateway, SubmitResponse{
				Success:    false,
				TaskID:     result.TaskID,
				NewImageID: result.NewImageID,
				NewVersion: result.NewVersion,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{
		Success:    true,
		TaskID:     result.TaskID,
		NewImageID: result.NewImageID,
		NewVersion: result.NewVersion,
	})
}

func (h *EditorHandler) confirmReplace(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	result, err := h.sessions.ConfirmReplace(c.Request.Context(), id)
	if err != nil {
		if result != nil {
			c.JSON(http.StatusBadGateway, SubmitResponse{
				Success:    false,
				TaskID:     result.TaskID,
				NewImageID: result.NewImageID,
				NewVersion: result.NewVersion,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{
		Success:    true,
		TaskID:     result.TaskID,
		NewImageID: result.NewImageID,
		NewVersion: result.NewVersion,
	})
}

func (h *EditorHandler) listVersions(c *gin.Context) {
	rootID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid image id"})
		return
	}

	versions, err := h.chain.ListVersions(c.Request.Context(), rootID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (h *EditorHandler) retryImage(c *gin.Context) {
	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid image id"})
		return
	}

	rec, err := h.orch.RetryFailed(c.Request.Context(), imageID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
