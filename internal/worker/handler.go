// Package worker обрабатывает задачи редактирования из очереди: вызов
// inpainting-провайдера, сохранение результата и публикация итога.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"staging-server/internal/messaging"
	"staging-server/internal/provider"
	"staging-server/internal/storage"
)

// Определяем метрики Prometheus
var (
	tasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_tasks_processed_total",
			Help: "Total number of image edit tasks processed.",
		},
		[]string{"status"}, // "success", "error_provider", "error_save", "error_publish", "error_unmarshal"
	)
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_editor_task_duration_seconds",
		Help:    "Duration of image edit task processing.",
		Buckets: prometheus.LinearBuckets(1, 2, 15),
	})
	providerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_editor_provider_errors_total",
		Help: "Total number of errors calling the inpainting provider.",
	})
	saveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_editor_save_errors_total",
		Help: "Total number of errors saving the edited image.",
	})
	publishResultErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_editor_publish_result_errors_total",
		Help: "Total number of errors publishing task results.",
	})
)

// Handler обрабатывает входящие задачи редактирования.
type Handler struct {
	logger          *zap.Logger
	provider        provider.Client
	store           storage.Store
	resultPublisher messaging.Publisher
	pusher          *push.Pusher
}

// NewHandler создает новый экземпляр Handler.
func NewHandler(
	logger *zap.Logger,
	providerClient provider.Client,
	store storage.Store,
	resultPublisher messaging.Publisher,
	pushGatewayURL string,
) *Handler {
	if resultPublisher == nil {
		logger.Fatal("Result publisher cannot be nil for image editor handler")
	}

	hostname, _ := os.Hostname()
	pusher := push.New(pushGatewayURL, "image-editor").
		Grouping("instance", hostname).
		Gatherer(prometheus.DefaultGatherer)

	logger.Info("Prometheus Pusher initialized", zap.String("url", pushGatewayURL), zap.String("instance", hostname))

	return &Handler{
		logger:          logger,
		provider:        providerClient,
		store:           store,
		resultPublisher: resultPublisher,
		pusher:          pusher,
	}
}

// HandleDelivery обрабатывает одно сообщение с задачей редактирования.
// Возвращает true, если сообщение должно быть подтверждено (ack).
func (h *Handler) HandleDelivery(ctx context.Context, msg amqp091.Delivery) bool {
	defer func() {
		if err := h.pusher.Push(); err != nil {
			h.logger.Error("Failed to push metrics to Pushgateway", zap.Error(err))
		}
	}()

	var task messaging.EditTaskPayload
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		h.logger.Error("Failed to unmarshal edit task",
			zap.Error(err),
			zap.String("correlation_id", msg.CorrelationId),
			zap.ByteString("body", msg.Body))
		tasksProcessed.WithLabelValues("error_unmarshal").Inc()
		return false // Nack - неизвестный формат
	}

	log := h.logger.With(
		zap.String("task_id", task.TaskID),
		zap.String("image_id", task.ImageID.String()),
		zap.String("mode", string(task.Mode)),
		zap.String("correlation_id", msg.CorrelationId))
	log.Info("Received image edit task")

	taskStartTime := time.Now()
	result := h.processTask(ctx, log, task)
	taskDuration.Observe(time.Since(taskStartTime).Seconds())

	if result.Success {
		tasksProcessed.WithLabelValues("success").Inc()
	}

	if pubErr := h.resultPublisher.Publish(ctx, result, msg.CorrelationId); pubErr != nil {
		log.Error("Failed to publish edit result", zap.Error(pubErr))
		publishResultErrors.Inc()
		tasksProcessed.WithLabelValues("error_publish").Inc()
		return false // Nack - ошибка публикации
	}

	if result.Success {
		log.Info("Edit task processed and result published")
	} else {
		log.Warn("Edit task failed, failure result published",
			zap.String("error", derefOrEmpty(result.ErrorMessage)))
	}
	return true // Ack
}

// processTask выполняет редактирование и сохранение. Результат изображения
// пишется в хранилище только после успешного ответа провайдера.
func (h *Handler) processTask(ctx context.Context, log *zap.Logger, task messaging.EditTaskPayload) messaging.EditResultPayload {
	result := messaging.EditResultPayload{
		TaskID:    task.TaskID,
		ImageID:   task.ImageID,
		ProjectID: task.ProjectID,
		UserID:    task.UserID,
		Success:   false,
	}

	edited, err := h.provider.EditImage(ctx, provider.EditRequest{
		SourceImageURL: task.SourceImage,
		MaskPNG:        task.MaskPNG,
		Instruction:    task.Instruction,
	})
	if err != nil {
		log.Error("Provider call failed", zap.Error(err))
		providerErrors.Inc()
		tasksProcessed.WithLabelValues("error_provider").Inc()
		errMsg := err.Error()
		result.ErrorMessage = &errMsg
		return result
	}

	ext := storage.ExtensionFromContentType(edited.ContentType)
	fileName := fmt.Sprintf("%s_edit_%d.%s", task.ImageID, time.Now().Unix(), ext)

	resultURL, err := h.store.Save(ctx, edited.Data, fileName)
	if err != nil {
		log.Error("Failed to save edited image", zap.Error(err))
		saveErrors.Inc()
		tasksProcessed.WithLabelValues("error_save").Inc()
		errMsg := err.Error()
		result.ErrorMessage = &errMsg
		return result
	}

	result.Success = true
	result.ResultURL = &resultURL

	if task.SetProjectThumbnail {
		thumbName := fmt.Sprintf("%s_thumb_%d.jpg", task.ImageID, time.Now().Unix())
		thumbURL, thumbErr := h.store.SaveThumbnail(ctx, edited.Data, thumbName)
		if thumbErr != nil {
			// Миниатюра не критична для результата редактирования.
			log.Warn("Failed to save project thumbnail", zap.Error(thumbErr))
		} else {
			result.ThumbnailURL = &thumbURL
		}
	}

	return result
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
