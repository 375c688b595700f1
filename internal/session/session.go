// Package session — конечный автомат сессии редактора изображения. Одна
// сессия монопольно владеет холстом маски одного изображения и проводит
// пользователя от выбора режима до отправки задания и получения результата.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"staging-server/internal/intent"
	"staging-server/internal/mask"
	"staging-server/internal/models"
)

// State состояние сессии редактора.
type State string

const (
	StateSelectingMode               State = "selecting_mode"
	StateDrawing                     State = "drawing"
	StateDescribingObject            State = "describing_object"
	StateRefiningObject              State = "refining_object"
	StateAwaitingReplaceConfirmation State = "awaiting_replace_confirmation"
	StateSubmitting                  State = "submitting"
	StateProcessing                  State = "processing"
	StateCompleted                   State = "completed"
	StateFailed                      State = "failed"
)

// Session сессия редактирования одного изображения.
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	image  *models.ImageRecord
	state  State
	mode   models.EditMode
	canvas *mask.Canvas

	// Данные намерения, собранные в DescribingObject/RefiningObject.
	description string
	object      intent.ObjectSpec

	// Результат последней отправки.
	taskID     string
	newImageID uuid.UUID
	lastError  string

	createdAt time.Time
	logger    *zap.Logger
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() uuid.UUID { return s.id }

// ImageID возвращает идентификатор редактируемого изображения.
func (s *Session) ImageID() uuid.UUID { return s.image.ID }

// State возвращает текущее состояние.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot моментальный снимок сессии для отдачи клиенту.
type Snapshot struct {
	SessionID     uuid.UUID       `json:"sessionId"`
	ImageID       uuid.UUID       `json:"imageId"`
	State         State           `json:"state"`
	Mode          models.EditMode `json:"mode,omitempty"`
	DisplayWidth  int             `json:"displayWidth"`
	DisplayHeight int             `json:"displayHeight"`
	StrokeCount   int             `json:"strokeCount"`
	BrushWidth    float64         `json:"brushWidth"`
	Bounds        *mask.Bounds    `json:"bounds,omitempty"`
	TaskID        string          `json:"taskId,omitempty"`
	NewImageID    *uuid.UUID      `json:"newImageId,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
}

// Snapshot возвращает снимок состояния сессии.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := s.canvas.Size()
	snap := Snapshot{
		SessionID:     s.id,
		ImageID:       s.image.ID,
		State:         s.state,
		Mode:          s.mode,
		DisplayWidth:  w,
		DisplayHeight: h,
		StrokeCount:   s.canvas.StrokeCount(),
		BrushWidth:    s.canvas.BrushWidth(),
		Bounds:        s.canvas.Bounds(),
		TaskID:        s.taskID,
		LastError:     s.lastError,
	}
	if s.newImageID != uuid.Nil {
		id := s.newImageID
		snap.NewImageID = &id
	}
	return snap
}

// canEdit состояния, в которых разрешены операции рисования. После Failed
// сессия остается открытой для повторной попытки.
func (s *Session) canEdit() bool {
	switch s.state {
	case StateDrawing, StateDescribingObject, StateRefiningObject, StateFailed:
		return true
	}
	return false
}

// SelectMode выбирает режим редактирования. Повторный вход в выбор режима
// сбрасывает собранный текст намерения, но сохраняет нарисованные штрихи.
func (s *Session) SelectMode(mode models.EditMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !mode.IsValid() {
		return fmt.Errorf("%w: unknown edit mode '%s'", models.ErrValidation, mode)
	}
	switch s.state {
	case StateSelectingMode, StateDrawing, StateDescribingObject, StateRefiningObject, StateFailed:
	default:
		return fmt.Errorf("%w: cannot select mode in state '%s'", models.ErrInvalidState, s.state)
	}

	if s.mode != "" && s.mode != mode {
		// Смена режима: штрихи остаются, текст намерения теряет смысл.
		s.description = ""
		s.object = intent.ObjectSpec{}
	}
	s.mode = mode
	s.state = StateDrawing
	return nil
}

// SetBrushWidth задает ширину кисти (с clamping к допустимому диапазону).
func (s *Session) SetBrushWidth(width float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canEdit() {
		return fmt.Errorf("%w: cannot change brush in state '%s'", models.ErrInvalidState, s.state)
	}
	s.canvas.SetBrushWidth(width)
	return nil
}

// AddStroke фиксирует целый штрих, пришедший от клиента.
func (s *Session) AddStroke(stroke mask.Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canEdit() {
		return fmt.Errorf("%w: cannot draw in state '%s'", models.ErrInvalidState, s.state)
	}
	s.canvas.AddStroke(stroke)
	s.state = StateDrawing
	return nil
}

// Undo откатывает последний штрих.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canEdit() {
		return fmt.Errorf("%w: cannot undo in state '%s'", models.ErrInvalidState, s.state)
	}
	s.canvas.Undo()
	return nil
}

// ClearMask стирает все штрихи и собранный текст намерения.
func (s *Session) ClearMask() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canEdit() {
		return fmt.Errorf("%w: cannot clear in state '%s'", models.ErrInvalidState, s.state)
	}
	s.canvas.Clear()
	s.description = ""
	s.object = intent.ObjectSpec{}
	s.state = StateDrawing
	return nil
}

// SetIntent принимает данные намерения и переводит сессию в состояние сбора
// описания (remove) или уточнения объекта (add).
func (s *Session) SetIntent(description string, object intent.ObjectSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDrawing, StateDescribingObject, StateRefiningObject, StateFailed:
	default:
		return fmt.Errorf("%w: cannot set intent in state '%s'", models.ErrInvalidState, s.state)
	}
	if s.mode == "" {
		return fmt.Errorf("%w: edit mode is not selected", models.ErrInvalidState)
	}

	s.description = description
	s.object = object
	if s.mode == models.EditModeRemove {
		s.state = StateDescribingObject
	} else {
		s.state = StateRefiningObject
	}
	return nil
}

// CancelIntent отменяет сбор намерения: введенный текст отбрасывается,
// сессия возвращается к рисованию.
func (s *Session) CancelIntent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDescribingObject, StateRefiningObject, StateAwaitingReplaceConfirmation:
	default:
		return fmt.Errorf("%w: nothing to cancel in state '%s'", models.ErrInvalidState, s.state)
	}
	if s.state != StateAwaitingReplaceConfirmation {
		s.description = ""
		s.object = intent.ObjectSpec{}
	}
	s.state = StateDrawing
	return nil
}

// buildIntent собирает Intent из накопленных полей. Вызывается под мьютексом.
func (s *Session) buildIntent() intent.Intent {
	it := intent.Intent{
		Mode:        s.mode,
		Description: s.description,
	}
	if s.mode == models.EditModeAdd {
		obj := s.object
		it.Object = &obj
	}
	return it
}
