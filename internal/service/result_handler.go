package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"staging-server/internal/messaging"
	"staging-server/internal/notifier"
)

// SessionReconciler доводит открытую сессию редактора до терминального
// состояния по результату задачи. Реализуется менеджером сессий.
type SessionReconciler interface {
	ApplyResult(imageID uuid.UUID, success bool, errorMessage *string)
}

// ResultHandler применяет результаты воркера: обновляет запись, доводит
// сессию и уведомляет пользователя по WebSocket.
type ResultHandler struct {
	orch     EditOrchestrator
	sessions SessionReconciler
	notifier *notifier.ConnectionManager
	logger   *zap.Logger
}

// NewResultHandler создает обработчик результатов редактирования.
func NewResultHandler(
	orch EditOrchestrator,
	sessions SessionReconciler,
	connManager *notifier.ConnectionManager,
	logger *zap.Logger,
) *ResultHandler {
	return &ResultHandler{
		orch:     orch,
		sessions: sessions,
		notifier: connManager,
		logger:   logger.Named("ResultHandler"),
	}
}

// HandleDelivery обрабатывает одно сообщение с результатом.
// Возвращает true, если сообщение должно быть подтверждено (ack).
func (h *ResultHandler) HandleDelivery(ctx context.Context, msg amqp091.Delivery) bool {
	var res messaging.EditResultPayload
	if err := json.Unmarshal(msg.Body, &res); err != nil {
		h.logger.Error("Failed to unmarshal edit result",
			zap.Error(err),
			zap.String("correlation_id", msg.CorrelationId),
			zap.ByteString("body", msg.Body))
		return false // Nack - неизвестный формат
	}

	log := h.logger.With(
		zap.String("task_id", res.TaskID),
		zap.String("image_id", res.ImageID.String()),
		zap.Bool("success", res.Success))
	log.Info("Received edit result")

	updated, err := h.orch.HandleResult(ctx, res)
	if err != nil {
		log.Error("Failed to apply edit result", zap.Error(err))
		// Nack без requeue привел бы к потере результата; requeue дает
		// шанс на повтор при временной недоступности БД.
		return false
	}

	h.sessions.ApplyResult(res.ImageID, res.Success, res.ErrorMessage)

	h.notifier.Notify(updated.UserID.String(), notifier.EditNotification{
		Type:         "edit_result",
		TaskID:       res.TaskID,
		ImageID:      updated.ID.String(),
		ProjectID:    updated.ProjectID.String(),
		Status:       string(updated.Status),
		ResultURL:    updated.ResultImageURL,
		ErrorMessage: updated.ErrorMessage,
	})

	return true
}
