package models

import (
	"time"

	"github.com/google/uuid"
)

// EditJob транзиентная корреляция между отправленной задачей редактирования
// и версией ImageRecord, которую она заполнит по завершении.
// Хранится в Redis с TTL, на персистентность не претендует: после
// завершения задачи запись удаляется, по истечении TTL результат
// все равно будет применен к ImageRecord по ImageID из payload.
type EditJob struct {
	TaskID     string    `json:"taskId"`
	ImageID    uuid.UUID `json:"imageId"`    // Новая версия, создаваемая этой задачей
	RootID     uuid.UUID `json:"rootId"`     // Корень цепочки версий
	ProjectID  uuid.UUID `json:"projectId"`
	UserID     uuid.UUID `json:"userId"`
	SessionID  uuid.UUID `json:"sessionId"`
	Mode       EditMode  `json:"mode"`
	SubmittedAt time.Time `json:"submittedAt"`
}
