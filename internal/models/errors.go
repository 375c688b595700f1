package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound      = errors.New("resource not found") // General not found
	ErrImageNotFound = errors.New("image not found")

	// Edit workflow errors
	ErrValidation           = errors.New("validation failed")                  // Пустая маска / пустой текст — до создания записи
	ErrConfirmationRequired = errors.New("replace confirmation required")      // Редактирование не-последней версии без флага замены
	ErrLoadFailed           = errors.New("source image load failed")           // Исходное изображение не загрузилось/не декодировалось
	ErrSubmissionFailed     = errors.New("edit job submission failed")         // Внешний сервис отклонил задачу или недоступен
	ErrInvalidState         = errors.New("operation not allowed in this state") // Нарушение переходов state machine
	ErrSessionNotFound      = errors.New("edit session not found")
	ErrSessionBusy          = errors.New("image already has an open edit session")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
