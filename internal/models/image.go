package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImageStatus статус записи изображения.
// Закрытый набор значений; любые другие значения считаются невалидными.
type ImageStatus string

const (
	StatusPending    ImageStatus = "pending"
	StatusProcessing ImageStatus = "processing"
	StatusCompleted  ImageStatus = "completed"
	StatusFailed     ImageStatus = "failed"
)

// IsValid проверяет, что статус принадлежит закрытому набору.
func (s ImageStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal возвращает true для терминальных статусов.
// Запись в терминальном статусе больше не мутируется — редактирование
// всегда создает новую версию.
func (s ImageStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EditMode режим редактирования маскированной области.
type EditMode string

const (
	EditModeRemove EditMode = "remove"
	EditModeAdd    EditMode = "add"
)

// IsValid проверяет, что режим принадлежит закрытому набору.
func (m EditMode) IsValid() bool {
	return m == EditModeRemove || m == EditModeAdd
}

// ImageRecord одна сгенерированная/отредактированная версия изображения.
//
// Инварианты цепочки версий:
//   - ровно одна запись цепочки имеет ParentID == nil (корень, всегда Version 1);
//   - у всех остальных записей ParentID равен id корня (не предыдущей версии!)
//     и Version > 1;
//   - версии строго возрастают, следующая версия всегда max(version)+1.
type ImageRecord struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspaceId" db:"workspace_id"`
	UserID      uuid.UUID `json:"userId" db:"user_id"`
	ProjectID   uuid.UUID `json:"projectId" db:"project_id"`

	OriginalImageURL string  `json:"originalImageUrl" db:"original_image_url"`
	ResultImageURL   *string `json:"resultImageUrl,omitempty" db:"result_image_url"`
	Prompt           string  `json:"prompt" db:"prompt"`

	Status       ImageStatus `json:"status" db:"status"`
	ErrorMessage *string     `json:"errorMessage,omitempty" db:"error_message"`

	Version  int        `json:"version" db:"version"`
	ParentID *uuid.UUID `json:"parentId,omitempty" db:"parent_id"`

	// Произвольные метаданные (шаблон стиля, тип комнаты, данные исходной загрузки)
	Metadata json.RawMessage `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// RootID возвращает id корня цепочки версий: ParentID ?? ID.
func (r *ImageRecord) RootID() uuid.UUID {
	if r.ParentID != nil {
		return *r.ParentID
	}
	return r.ID
}

// SourceImageURL возвращает URL, который используется как вход для редактирования:
// результат, если он есть, иначе исходная загрузка.
func (r *ImageRecord) SourceImageURL() string {
	if r.ResultImageURL != nil && *r.ResultImageURL != "" {
		return *r.ResultImageURL
	}
	return r.OriginalImageURL
}

// Project проект (группа изображений одного объекта недвижимости).
// Счетчики денормализованы и пересчитываются репозиторием после каждой
// смены статуса изображения.
type Project struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	WorkspaceID    uuid.UUID   `json:"workspaceId" db:"workspace_id"`
	Name           string      `json:"name" db:"name"`
	ThumbnailURL   *string     `json:"thumbnailUrl,omitempty" db:"thumbnail_url"`
	Status         ImageStatus `json:"status" db:"status"`
	ImageCount     int         `json:"imageCount" db:"image_count"`
	CompletedCount int         `json:"completedCount" db:"completed_count"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time   `json:"updatedAt" db:"updated_at"`
}
