package messaging

import (
	"github.com/google/uuid"

	"staging-server/internal/models"
)

// EditTaskPayload задача на inpainting-редактирование для воркера.
// MaskPNG сериализуется в base64 стандартным json-маршалингом []byte.
type EditTaskPayload struct {
	TaskID      string          `json:"taskId"`
	ImageID     uuid.UUID       `json:"imageId"` // Новая версия, которую заполнит задача
	RootID      uuid.UUID       `json:"rootId"`
	ProjectID   uuid.UUID       `json:"projectId"`
	UserID      uuid.UUID       `json:"userId"`
	SourceImage string          `json:"sourceImageUrl"`
	MaskPNG     []byte          `json:"maskPng"`
	Instruction string          `json:"instruction"`
	Mode        models.EditMode `json:"mode"`
	// Обновить миниатюру проекта, если она еще не установлена
	SetProjectThumbnail bool `json:"setProjectThumbnail,omitempty"`
}

// EditResultPayload результат обработки задачи редактирования.
type EditResultPayload struct {
	TaskID       string    `json:"taskId"`
	ImageID      uuid.UUID `json:"imageId"`
	ProjectID    uuid.UUID `json:"projectId"`
	UserID       uuid.UUID `json:"userId"`
	Success      bool      `json:"success"`
	ResultURL    *string   `json:"resultUrl,omitempty"`
	ThumbnailURL *string   `json:"thumbnailUrl,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
}
