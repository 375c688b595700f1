package handler

import (
	"github.com/google/uuid"

	"staging-server/internal/intent"
	"staging-server/internal/mask"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
	// Клиент показывает диалог подтверждения замены версий
	ConfirmationRequired bool `json:"confirmationRequired,omitempty"`
}

// OpenSessionRequest запрос на открытие сессии редактора.
type OpenSessionRequest struct {
	ImageID    uuid.UUID `json:"imageId" binding:"required"`
	ViewWidth  int       `json:"viewWidth" binding:"required"`
	ViewHeight int       `json:"viewHeight" binding:"required"`
}

// SelectModeRequest выбор режима редактирования.
type SelectModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// AddStrokeRequest один завершенный штрих маски.
type AddStrokeRequest struct {
	Points []mask.Point `json:"points" binding:"required"`
	Width  float64      `json:"width"`
	Tag    string       `json:"tag"`
}

// SetBrushRequest смена ширины кисти.
type SetBrushRequest struct {
	Width float64 `json:"width" binding:"required"`
}

// SetIntentRequest данные намерения редактирования. Для remove заполняется
// Description, для add — Object.
type SetIntentRequest struct {
	Description string `json:"description"`
	Object      struct {
		Name  string `json:"name"`
		Size  string `json:"size"`
		Style string `json:"style"`
		Color string `json:"color"`
	} `json:"object"`
}

// ToObjectSpec преобразует тело запроса в спецификацию объекта.
func (r *SetIntentRequest) ToObjectSpec() intent.ObjectSpec {
	return intent.ObjectSpec{
		Name:  r.Object.Name,
		Size:  intent.ObjectSize(r.Object.Size),
		Style: r.Object.Style,
		Color: r.Object.Color,
	}
}

// SubmitRequest отправка задания редактирования.
type SubmitRequest struct {
	ReplaceNewer bool `json:"replaceNewer"`
}

// SubmitResponse ответ на отправку задания.
type SubmitResponse struct {
	Success    bool      `json:"success"`
	TaskID     string    `json:"taskId,omitempty"`
	NewImageID uuid.UUID `json:"newImageId,omitempty"`
	NewVersion int       `json:"newVersion,omitempty"`
}
