package session_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"staging-server/internal/intent"
	"staging-server/internal/mask"
	"staging-server/internal/models"
	repomocks "staging-server/internal/repository/mocks"
	"staging-server/internal/service"
	servicemocks "staging-server/internal/service/mocks"
	"staging-server/internal/session"
	"staging-server/internal/version"
)

// stubSizeLoader возвращает фиксированные размеры изображения.
type stubSizeLoader struct {
	w, h int
	err  error
}

func (l *stubSizeLoader) LoadSize(_ context.Context, _ string) (int, int, error) {
	return l.w, l.h, l.err
}

type sessionFixture struct {
	repo   *repomocks.ImageRepository
	orch   *servicemocks.EditOrchestrator
	loader *stubSizeLoader
	mgr    *session.Manager
}

func newSessionFixture() *sessionFixture {
	repo := new(repomocks.ImageRepository)
	orch := new(servicemocks.EditOrchestrator)
	loader := &stubSizeLoader{w: 1600, h: 1200}
	chain := version.NewChainManager(repo, zap.NewNop())

	return &sessionFixture{
		repo:   repo,
		orch:   orch,
		loader: loader,
		mgr:    session.NewManager(repo, chain, orch, loader, zap.NewNop()),
	}
}

func testRecord() *models.ImageRecord {
	return &models.ImageRecord{
		ID:               uuid.New(),
		WorkspaceID:      uuid.New(),
		UserID:           uuid.New(),
		ProjectID:        uuid.New(),
		OriginalImageURL: "https://cdn.example.com/room.jpg",
		Status:           models.StatusCompleted,
		Version:          1,
	}
}

func openSession(t *testing.T, f *sessionFixture, rec *models.ImageRecord) *session.Session {
	t.Helper()
	f.repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	s, err := f.mgr.Open(context.Background(), rec.ID, 800, 600)
	assert.NoError(t, err)
	return s
}

func drawStroke(t *testing.T, s *session.Session) {
	t.Helper()
	err := s.AddStroke(mask.Stroke{
		Points: []mask.Point{{X: 100, Y: 100}, {X: 200, Y: 150}},
		Width:  30,
		Tag:    mask.StrokeTagRemove,
	})
	assert.NoError(t, err)
}

func TestManager_Open(t *testing.T) {
	t.Run("Opens in selecting mode with fitted canvas", func(t *testing.T) {
		f := newSessionFixture()
		rec := testRecord()
		s := openSession(t, f, rec)

		snap := s.Snapshot()
		assert.Equal(t, session.StateSelectingMode, snap.State)
		assert.Equal(t, rec.ID, snap.ImageID)
		// 1600x1200 вписано в 800x600
		assert.Equal(t, 800, snap.DisplayWidth)
		assert.Equal(t, 600, snap.DisplayHeight)
	})

	t.Run("Second session on the same image is refused", func(t *testing.T) {
		f := newSessionFixture()
		rec := testRecord()
		openSession(t, f, rec)

		_, err := f.mgr.Open(context.Background(), rec.ID, 800, 600)
		assert.ErrorIs(t, err, models.ErrSessionBusy)
	})

	t.Run("Load failure aborts initialization", func(t *testing.T) {
		f := newSessionFixture()
		f.loader.err = assert.AnError
		rec := testRecord()
		f.repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

		_, err := f.mgr.Open(context.Background(), rec.ID, 800, 600)
		assert.ErrorIs(t, err, models.ErrLoadFailed)

		// Сессия не зарегистрирована: повторное открытие не ErrSessionBusy
		f.loader.err = nil
		_, err = f.mgr.Open(context.Background(), rec.ID, 800, 600)
		assert.NoError(t, err)
	})

	t.Run("Unknown image propagates not found", func(t *testing.T) {
		f := newSessionFixture()
		id := uuid.New()
		f.repo.On("GetByID", mock.Anything, id).Return(nil, models.ErrImageNotFound)

		_, err := f.mgr.Open(context.Background(), id, 800, 600)
		assert.ErrorIs(t, err, models.ErrImageNotFound)
	})
}

func TestSession_ModeSwitch(t *testing.T) {
	t.Run("Switching modes keeps strokes but clears intent text", func(t *testing.T) {
		f := newSessionFixture()
		s := openSession(t, f, testRecord())

		assert.NoError(t, s.SelectMode(models.EditModeRemove))
		drawStroke(t, s)
		assert.NoError(t, s.SetIntent("old cabinet", intent.ObjectSpec{}))
		assert.Equal(t, session.StateDescribingObject, s.State())

		// Смена режима: штрихи на месте, текст намерения сброшен
		assert.NoError(t, s.SelectMode(models.EditModeAdd))
		snap := s.Snapshot()
		assert.Equal(t, session.StateDrawing, snap.State)
		assert.Equal(t, 1, snap.StrokeCount)

		// Отправка без нового намерения отклоняется: описание сброшено
		f.orch.AssertNotCalled(t, "SubmitEdit")
		_, err := f.mgr.Submit(context.Background(), snap.SessionID, false)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("Invalid mode rejected", func(t *testing.T) {
		f := newSessionFixture()
		s := openSession(t, f, testRecord())
		assert.ErrorIs(t, s.SelectMode("restyle"), models.ErrValidation)
	})
}

func TestSession_ClearResetsIntent(t *testing.T) {
	f := newSessionFixture()
	s := openSession(t, f, testRecord())

	assert.NoError(t, s.SelectMode(models.EditModeRemove))
	drawStroke(t, s)
	assert.NoError(t, s.SetIntent("dusty rug", intent.ObjectSpec{}))

	assert.NoError(t, s.ClearMask())
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.StrokeCount)
	assert.Equal(t, session.StateDrawing, snap.State)
}

func TestManager_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("Zero strokes rejected before rasterization", func(t *testing.T) {
		f := newSessionFixture()
		s := openSession(t, f, testRecord())
		assert.NoError(t, s.SelectMode(models.EditModeRemove))
		assert.NoError(t, s.SetIntent("ugly vase", intent.ObjectSpec{}))

		_, err := f.mgr.Submit(ctx, s.ID(), false)
		assert.ErrorIs(t, err, models.ErrValidation)
		f.orch.AssertNotCalled(t, "SubmitEdit")
		// Состояние не изменилось
		assert.Equal(t, session.StateDescribingObject, s.State())
	})

	t.Run("Successful submit moves session to processing", func(t *testing.T) {
		f := newSessionFixture()
		rec := testRecord()
		s := openSession(t, f, rec)
		assert.NoError(t, s.SelectMode(models.EditModeRemove))
		drawStroke(t, s)
		assert.NoError(t, s.SetIntent("ceiling fan", intent.ObjectSpec{}))

		newImageID := uuid.New()
		var submitted service.SubmitRequest
		f.orch.On("SubmitEdit", ctx, mock.AnythingOfType("service.SubmitRequest")).
			Run(func(args mock.Arguments) {
				submitted = args.Get(1).(service.SubmitRequest)
			}).
			Return(&service.SubmitResult{Success: true, TaskID: "task-9", NewImageID: newImageID, NewVersion: 2}, nil)

		result, err := f.mgr.Submit(ctx, s.ID(), false)
		assert.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, session.StateProcessing, s.State())

		// Инструкция синтезирована из намерения, маска растеризована
		assert.Equal(t, "Remove the ceiling fan and realistically fill in the background.", submitted.Instruction)
		assert.NotEmpty(t, submitted.MaskPNG)
		assert.Equal(t, models.EditModeRemove, submitted.Mode)
		assert.Equal(t, rec.ID, submitted.Image.ID)
	})

	t.Run("Confirmation required parks session awaiting confirmation", func(t *testing.T) {
		f := newSessionFixture()
		s := openSession(t, f, testRecord())
		assert.NoError(t, s.SelectMode(models.EditModeRemove))
		drawStroke(t, s)
		assert.NoError(t, s.SetIntent("side table", intent.ObjectSpec{}))

		f.orch.On("SubmitEdit", ctx, mock.AnythingOfType("service.SubmitRequest")).
			Return(nil, models.ErrConfirmationRequired).Once()

		_, err := f.mgr.Submit(ctx, s.ID(), false)
		assert.ErrorIs(t, err, models.ErrConfirmationRequired)
		assert.Equal(t, session.StateAwaitingReplaceConfirmation, s.State())

		// Подтверждение повторяет отправку с установленным флагом
		newImageID := uuid.New()
		f.orch.On("SubmitEdit", ctx, mock.MatchedBy(func(req service.SubmitRequest) bool {
			return req.ReplaceNewer
		})).Return(&service.SubmitResult{Success: true, TaskID: "task-10", NewImageID: newImageID, NewVersion: 2}, nil)

		result, err := f.mgr.ConfirmReplace(ctx, s.ID())
		assert.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, session.StateProcessing, s.State())
	})

	t.Run("Submission failure leaves session open in failed state", func(t *testing.T) {
		f := newSessionFixture()
		s := openSession(t, f, testRecord())
		assert.NoError(t, s.SelectMode(models.EditModeRemove))
		drawStroke(t, s)
		assert.NoError(t, s.SetIntent("broken chair", intent.ObjectSpec{}))

		failedID := uuid.New()
		f.orch.On("SubmitEdit", ctx, mock.AnythingOfType("service.SubmitRequest")).
			Return(&service.SubmitResult{Success: false, TaskID: "task-11", NewImageID: failedID},
				models.ErrSubmissionFailed)

		result, err := f.mgr.Submit(ctx, s.ID(), false)
		assert.ErrorIs(t, err, models.ErrSubmissionFailed)
		assert.NotNil(t, result)
		assert.Equal(t, session.StateFailed, s.State())

		// Сессия остается открытой: можно рисовать и пробовать снова
		assert.NoError(t, s.Undo())
	})
}

func TestManager_Close(t *testing.T) {
	ctx := context.Background()

	t.Run("Close is allowed from drawing", func(t *testing.T) {
		f := newSessionFixture()
		s := openSession(t, f, testRecord())
		assert.NoError(t, s.SelectMode(models.EditModeRemove))

		assert.NoError(t, f.mgr.Close(s.ID()))
		_, err := f.mgr.Get(s.ID())
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("Close is forbidden while job is in flight", func(t *testing.T) {
		f := newSessionFixture()
		s := openSession(t, f, testRecord())
		assert.NoError(t, s.SelectMode(models.EditModeRemove))
		drawStroke(t, s)
		assert.NoError(t, s.SetIntent("wall clock", intent.ObjectSpec{}))

		f.orch.On("SubmitEdit", ctx, mock.AnythingOfType("service.SubmitRequest")).
			Return(&service.SubmitResult{Success: true, TaskID: "task-12", NewImageID: uuid.New(), NewVersion: 2}, nil)
		_, err := f.mgr.Submit(ctx, s.ID(), false)
		assert.NoError(t, err)

		assert.ErrorIs(t, f.mgr.Close(s.ID()), models.ErrInvalidState)
	})

	t.Run("Closing unknown session", func(t *testing.T) {
		f := newSessionFixture()
		assert.ErrorIs(t, f.mgr.Close(uuid.New()), models.ErrSessionNotFound)
	})
}

func TestManager_ApplyResult(t *testing.T) {
	ctx := context.Background()

	setupProcessing := func(t *testing.T, f *sessionFixture) (*session.Session, uuid.UUID) {
		s := openSession(t, f, testRecord())
		assert.NoError(t, s.SelectMode(models.EditModeRemove))
		drawStroke(t, s)
		assert.NoError(t, s.SetIntent("floor lamp", intent.ObjectSpec{}))

		newImageID := uuid.New()
		f.orch.On("SubmitEdit", ctx, mock.AnythingOfType("service.SubmitRequest")).
			Return(&service.SubmitResult{Success: true, TaskID: "task-13", NewImageID: newImageID, NewVersion: 2}, nil)
		_, err := f.mgr.Submit(ctx, s.ID(), false)
		assert.NoError(t, err)
		return s, newImageID
	}

	t.Run("Successful result completes and closes the session", func(t *testing.T) {
		f := newSessionFixture()
		s, newImageID := setupProcessing(t, f)

		f.mgr.ApplyResult(newImageID, true, nil)
		assert.Equal(t, session.StateCompleted, s.State())

		_, err := f.mgr.Get(s.ID())
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("Failed result keeps session open for retry", func(t *testing.T) {
		f := newSessionFixture()
		s, newImageID := setupProcessing(t, f)

		errMsg := "provider timeout"
		f.mgr.ApplyResult(newImageID, false, &errMsg)
		assert.Equal(t, session.StateFailed, s.State())
		assert.Equal(t, errMsg, s.Snapshot().LastError)

		_, err := f.mgr.Get(s.ID())
		assert.NoError(t, err, "failed session must stay open")
	})

	t.Run("Result for unknown image is ignored", func(t *testing.T) {
		f := newSessionFixture()
		f.mgr.ApplyResult(uuid.New(), true, nil)
	})
}
