package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"staging-server/internal/intent"
	"staging-server/internal/mask"
	"staging-server/internal/models"
	"staging-server/internal/repository"
	"staging-server/internal/service"
	"staging-server/internal/version"
)

// ImageSizeLoader загружает размеры исходного изображения при открытии
// сессии. Ошибка загрузки прерывает инициализацию сессии.
type ImageSizeLoader interface {
	LoadSize(ctx context.Context, url string) (width, height int, err error)
}

// Manager владеет открытыми сессиями редактора. На одно изображение может
// быть открыта только одна сессия.
type Manager struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Session
	byImage map[uuid.UUID]uuid.UUID

	repo   repository.ImageRepository
	chain  *version.ChainManager
	orch   service.EditOrchestrator
	sizes  ImageSizeLoader
	logger *zap.Logger
}

// NewManager создает менеджер сессий.
func NewManager(
	repo repository.ImageRepository,
	chain *version.ChainManager,
	orch service.EditOrchestrator,
	sizes ImageSizeLoader,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		byID:    make(map[uuid.UUID]*Session),
		byImage: make(map[uuid.UUID]uuid.UUID),
		repo:    repo,
		chain:   chain,
		orch:    orch,
		sizes:   sizes,
		logger:  logger.Named("SessionManager"),
	}
}

// Open открывает сессию редактора для изображения. Размеры исходного
// изображения загружаются синхронно; при неудаче сессия не создается
// (models.ErrLoadFailed). Если по изображению уже открыта сессия —
// models.ErrSessionBusy.
func (m *Manager) Open(ctx context.Context, imageID uuid.UUID, viewW, viewH int) (*Session, error) {
	rec, err := m.repo.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if viewW <= 0 || viewH <= 0 {
		return nil, fmt.Errorf("%w: view dimensions must be positive", models.ErrValidation)
	}

	srcURL := rec.SourceImageURL()
	imgW, imgH, err := m.sizes.LoadSize(ctx, srcURL)
	if err != nil {
		m.logger.Error("Failed to load source image for session",
			zap.String("imageID", imageID.String()), zap.String("url", srcURL), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrLoadFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sid, busy := m.byImage[imageID]; busy {
		return nil, fmt.Errorf("%w: image %s is already being edited in session %s",
			models.ErrSessionBusy, imageID, sid)
	}

	s := &Session{
		id:        uuid.New(),
		image:     rec,
		state:     StateSelectingMode,
		canvas:    mask.NewCanvas(m.logger),
		createdAt: time.Now().UTC(),
	}
	s.logger = m.logger.With(zap.String("sessionID", s.id.String()))

	dispW, dispH := mask.FitDisplay(imgW, imgH, viewW, viewH)
	s.canvas.Init(dispW, dispH)

	m.byID[s.id] = s
	m.byImage[imageID] = s.id

	m.logger.Info("Editor session opened",
		zap.String("sessionID", s.id.String()),
		zap.String("imageID", imageID.String()),
		zap.Int("display_width", dispW),
		zap.Int("display_height", dispH))
	return s, nil
}

// Get возвращает открытую сессию по id.
func (m *Manager) Get(sessionID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", models.ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// Close закрывает сессию. Во время Submitting/Processing закрытие запрещено:
// пользователь не должен терять из виду задание, которое уже нельзя отменить.
func (m *Manager) Close(sessionID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.byID[sessionID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", models.ErrSessionNotFound, sessionID)
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == StateSubmitting || state == StateProcessing {
		return fmt.Errorf("%w: cannot close session while edit job is in flight (state '%s')",
			models.ErrInvalidState, state)
	}

	m.remove(s)
	m.logger.Info("Editor session closed", zap.String("sessionID", sessionID.String()))
	return nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, s.id)
	delete(m.byImage, s.image.ID)
}

// Submit собирает инструкцию, растеризует маску и отправляет задание через
// оркестратор. Порядок проверок: пустая маска и невалидное намерение
// отклоняются до растеризации и до каких-либо записей; редактирование
// не-последней версии без replaceNewer переводит сессию в
// AwaitingReplaceConfirmation и возвращает ErrConfirmationRequired.
func (m *Manager) Submit(ctx context.Context, sessionID uuid.UUID, replaceNewer bool) (*service.SubmitResult, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDrawing, StateDescribingObject, StateRefiningObject, StateAwaitingReplaceConfirmation, StateFailed:
	default:
		return nil, fmt.Errorf("%w: cannot submit in state '%s'", models.ErrInvalidState, s.state)
	}

	// Пустая маска отклоняется раньше растеризации.
	if s.canvas.StrokeCount() == 0 {
		return nil, fmt.Errorf("%w: no mask strokes drawn", models.ErrValidation)
	}

	instruction, err := intent.BuildInstruction(s.buildIntent())
	if err != nil {
		return nil, err
	}

	maskPNG, err := mask.Rasterize(s.canvas)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize mask: %w", err)
	}

	prevState := s.state
	s.state = StateSubmitting

	result, err := m.orch.SubmitEdit(ctx, service.SubmitRequest{
		Image:        s.image,
		MaskPNG:      maskPNG,
		Instruction:  instruction,
		Mode:         s.mode,
		ReplaceNewer: replaceNewer,
		SessionID:    s.id,
	})
	if err != nil {
		if errors.Is(err, models.ErrConfirmationRequired) {
			s.state = StateAwaitingReplaceConfirmation
			return nil, err
		}
		if errors.Is(err, models.ErrValidation) {
			s.state = prevState
			return nil, err
		}
		// Отправка не удалась: запись версии осталась в failed, сессия
		// остается открытой для повторной попытки.
		s.state = StateFailed
		s.lastError = err.Error()
		if result != nil {
			s.taskID = result.TaskID
			s.newImageID = result.NewImageID
		}
		return result, err
	}

	s.state = StateProcessing
	s.taskID = result.TaskID
	s.newImageID = result.NewImageID
	s.lastError = ""

	s.logger.Info("Edit job submitted from session",
		zap.String("taskID", result.TaskID),
		zap.String("newImageID", result.NewImageID.String()),
		zap.Int("version", result.NewVersion))
	return result, nil
}

// ConfirmReplace подтверждает замену более новых версий и повторяет отправку.
func (m *Manager) ConfirmReplace(ctx context.Context, sessionID uuid.UUID) (*service.SubmitResult, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateAwaitingReplaceConfirmation {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no replace confirmation pending (state '%s')", models.ErrInvalidState, state)
	}
	s.mu.Unlock()

	return m.Submit(ctx, sessionID, true)
}

// ApplyResult доводит сессию до терминального состояния по результату
// воркера. Completed закрывает сессию; Failed оставляет ее открытой для
// повторной попытки.
func (m *Manager) ApplyResult(imageID uuid.UUID, success bool, errorMessage *string) {
	m.mu.Lock()
	var target *Session
	for _, s := range m.byID {
		s.mu.Lock()
		match := s.newImageID == imageID
		s.mu.Unlock()
		if match {
			target = s
			break
		}
	}
	m.mu.Unlock()

	if target == nil {
		return
	}

	target.mu.Lock()
	if success {
		target.state = StateCompleted
		target.lastError = ""
	} else {
		target.state = StateFailed
		if errorMessage != nil {
			target.lastError = *errorMessage
		} else {
			target.lastError = "image processing failed"
		}
	}
	state := target.state
	target.mu.Unlock()

	if state == StateCompleted {
		m.remove(target)
	}

	m.logger.Info("Edit result applied to session",
		zap.String("sessionID", target.id.String()),
		zap.String("state", string(state)))
}
