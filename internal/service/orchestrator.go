// Package service — оркестрация заданий редактирования: создание новой версии
// в цепочке, постановка задачи в очередь и применение результатов воркера.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"staging-server/internal/messaging"
	"staging-server/internal/models"
	"staging-server/internal/repository"
	"staging-server/internal/storage"
	"staging-server/internal/version"
)

// SubmitRequest параметры отправки задания редактирования.
type SubmitRequest struct {
	// Image версия, от которой редактируем (источник пикселей).
	Image *models.ImageRecord
	// MaskPNG растеризованная маска.
	MaskPNG []byte
	// Instruction готовая текстовая инструкция.
	Instruction string
	// Mode режим редактирования.
	Mode models.EditMode
	// ReplaceNewer подтверждение пользователя на усечение более новых версий.
	ReplaceNewer bool
	// SessionID сессия редактора, инициировавшая отправку (для нотификаций).
	SessionID uuid.UUID
	// Metadata произвольные метаданные запроса.
	Metadata json.RawMessage
}

// SubmitResult итог отправки.
type SubmitResult struct {
	// Success false означает, что запись создана, но задача не ушла в очередь.
	Success    bool
	TaskID     string
	NewImageID uuid.UUID
	NewVersion int
}

// EditOrchestrator управляет жизненным циклом заданий редактирования.
type EditOrchestrator interface {
	// SubmitEdit создает новую версию и отправляет задачу воркеру.
	SubmitEdit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	// HandleResult применяет результат воркера к записи изображения.
	HandleResult(ctx context.Context, res messaging.EditResultPayload) (*models.ImageRecord, error)
	// RetryFailed возвращает упавшую запись в pending для повторной обработки.
	RetryFailed(ctx context.Context, imageID uuid.UUID) (*models.ImageRecord, error)
}

// Compile-time check to ensure editOrchestrator implements EditOrchestrator
var _ EditOrchestrator = (*editOrchestrator)(nil)

type editOrchestrator struct {
	repo      repository.ImageRepository
	chain     *version.ChainManager
	jobs      repository.EditJobStore
	publisher messaging.Publisher
	store     storage.Store
	jobTTL    time.Duration
	logger    *zap.Logger
}

// NewEditOrchestrator создает оркестратор заданий редактирования.
func NewEditOrchestrator(
	repo repository.ImageRepository,
	chain *version.ChainManager,
	jobs repository.EditJobStore,
	publisher messaging.Publisher,
	store storage.Store,
	jobTTL time.Duration,
	logger *zap.Logger,
) EditOrchestrator {
	return &editOrchestrator{
		repo:      repo,
		chain:     chain,
		jobs:      jobs,
		publisher: publisher,
		store:     store,
		jobTTL:    jobTTL,
		logger:    logger.Named("EditOrchestrator"),
	}
}

// SubmitEdit проводит полный цикл отправки:
//
//  1. валидация входа (до любых записей в БД);
//  2. проверка актуальности версии: редактирование не-последней версии без
//     ReplaceNewer отклоняется с ErrConfirmationRequired, запись не создается;
//  3. создание записи новой версии (с усечением ветки в той же транзакции,
//     если подтверждена замена);
//  4. публикация задачи в очередь; при неудаче запись остается в статусе
//     failed для аудита, а вызывающему возвращается Success=false.
func (o *editOrchestrator) SubmitEdit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.Image == nil {
		return nil, fmt.Errorf("%w: image record is required", models.ErrValidation)
	}
	if len(req.MaskPNG) == 0 {
		return nil, fmt.Errorf("%w: mask is empty", models.ErrValidation)
	}
	if req.Instruction == "" {
		return nil, fmt.Errorf("%w: instruction is empty", models.ErrValidation)
	}
	if !req.Mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown edit mode '%s'", models.ErrValidation, req.Mode)
	}

	rootID := req.Image.RootID()
	latest, err := o.chain.LatestVersion(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version for chain %s: %w", rootID, err)
	}
	if latest == 0 {
		return nil, fmt.Errorf("%w: version chain root %s", models.ErrImageNotFound, rootID)
	}

	// Редактирование старой версии разрушает более новые версии, поэтому
	// требует явного подтверждения пользователя.
	var truncateAfter *int
	if req.Image.Version < latest {
		if !req.ReplaceNewer {
			return nil, fmt.Errorf("%w: image %s is version %d of %d",
				models.ErrConfirmationRequired, req.Image.ID, req.Image.Version, latest)
		}
		v := req.Image.Version
		truncateAfter = &v
	}

	rec := &models.ImageRecord{
		ID:               uuid.New(),
		WorkspaceID:      req.Image.WorkspaceID,
		UserID:           req.Image.UserID,
		ProjectID:        req.Image.ProjectID,
		OriginalImageURL: req.Image.SourceImageURL(),
		Prompt:           req.Instruction,
		Status:           models.StatusPending,
		Metadata:         req.Metadata,
	}

	created, truncated, err := o.repo.CreateNextVersion(ctx, rootID, truncateAfter, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create edit version: %w", err)
	}

	o.logger.Info("Edit version created",
		zap.String("imageID", created.ID.String()),
		zap.String("rootID", rootID.String()),
		zap.Int("version", created.Version),
		zap.Int("truncated_count", len(truncated)))

	// Файлы усеченных версий больше недостижимы — чистим хранилище.
	// Ошибки здесь не фатальны: записи в БД уже удалены.
	for i := range truncated {
		if truncated[i].ResultImageURL != nil {
			_ = o.store.Remove(ctx, *truncated[i].ResultImageURL)
		}
	}

	taskID := uuid.NewString()
	payload := messaging.EditTaskPayload{
		TaskID:              taskID,
		ImageID:             created.ID,
		RootID:              rootID,
		ProjectID:           created.ProjectID,
		UserID:              created.UserID,
		SourceImage:         created.OriginalImageURL,
		MaskPNG:             req.MaskPNG,
		Instruction:         req.Instruction,
		Mode:                req.Mode,
		SetProjectThumbnail: created.Version == 1,
	}

	if err := o.publisher.Publish(ctx, payload, taskID); err != nil {
		o.logger.Error("Failed to publish edit task",
			zap.String("taskID", taskID),
			zap.String("imageID", created.ID.String()),
			zap.Error(err))

		errMsg := "failed to submit edit task to processing queue"
		if _, updErr := o.repo.UpdateStatus(ctx, created.ID, models.StatusFailed, nil, &errMsg); updErr != nil {
			o.logger.Error("Failed to mark image as failed after publish error",
				zap.String("imageID", created.ID.String()), zap.Error(updErr))
		}
		o.recountProject(ctx, created.ProjectID)

		return &SubmitResult{Success: false, TaskID: taskID, NewImageID: created.ID, NewVersion: created.Version},
			fmt.Errorf("%w: %v", models.ErrSubmissionFailed, err)
	}

	if _, err := o.repo.UpdateStatus(ctx, created.ID, models.StatusProcessing, nil, nil); err != nil {
		o.logger.Error("Failed to mark image as processing",
			zap.String("imageID", created.ID.String()), zap.Error(err))
	}

	job := &models.EditJob{
		TaskID:      taskID,
		ImageID:     created.ID,
		RootID:      rootID,
		ProjectID:   created.ProjectID,
		UserID:      created.UserID,
		SessionID:   req.SessionID,
		Mode:        req.Mode,
		SubmittedAt: time.Now().UTC(),
	}
	if err := o.jobs.SaveJob(ctx, job, o.jobTTL); err != nil {
		// Не фатально: результат все равно несет imageID.
		o.logger.Warn("Failed to save edit job correlation", zap.String("taskID", taskID), zap.Error(err))
	}

	o.recountProject(ctx, created.ProjectID)

	o.logger.Info("Edit task submitted",
		zap.String("taskID", taskID),
		zap.String("imageID", created.ID.String()),
		zap.Int("version", created.Version))

	return &SubmitResult{Success: true, TaskID: taskID, NewImageID: created.ID, NewVersion: created.Version}, nil
}

// HandleResult применяет результат воркера: переводит запись в completed или
// failed, пересчитывает счетчики проекта и выставляет миниатюру проекта,
// если ее еще нет.
func (o *editOrchestrator) HandleResult(ctx context.Context, res messaging.EditResultPayload) (*models.ImageRecord, error) {
	var (
		status    models.ImageStatus
		resultURL *string
		errMsg    *string
	)
	if res.Success && res.ResultURL != nil && *res.ResultURL != "" {
		status = models.StatusCompleted
		resultURL = res.ResultURL
	} else {
		status = models.StatusFailed
		errMsg = res.ErrorMessage
		if errMsg == nil {
			m := "image processing failed"
			errMsg = &m
		}
	}

	updated, err := o.repo.UpdateStatus(ctx, res.ImageID, status, resultURL, errMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to apply edit result for image %s: %w", res.ImageID, err)
	}

	o.recountProject(ctx, updated.ProjectID)

	if status == models.StatusCompleted && res.ThumbnailURL != nil && *res.ThumbnailURL != "" {
		if err := o.repo.SetProjectThumbnailIfEmpty(ctx, updated.ProjectID, *res.ThumbnailURL); err != nil {
			o.logger.Warn("Failed to set project thumbnail",
				zap.String("projectID", updated.ProjectID.String()), zap.Error(err))
		}
	}

	sessionID := ""
	if res.TaskID != "" {
		// Корреляция может уже истечь по TTL — результат несет imageID и
		// применим без нее.
		if job, jobErr := o.jobs.GetJob(ctx, res.TaskID); jobErr == nil {
			sessionID = job.SessionID.String()
		}
		if err := o.jobs.DeleteJob(ctx, res.TaskID); err != nil {
			o.logger.Warn("Failed to delete edit job correlation", zap.String("taskID", res.TaskID), zap.Error(err))
		}
	}

	o.logger.Info("Edit result applied",
		zap.String("taskID", res.TaskID),
		zap.String("imageID", res.ImageID.String()),
		zap.String("sessionID", sessionID),
		zap.String("status", string(status)))

	return updated, nil
}

// RetryFailed сбрасывает упавшую запись в pending. Повторная постановка в
// очередь — забота вызывающего (для правок пользователь повторяет отправку
// из сессии, для исходных загрузок — пайплайн загрузки).
func (o *editOrchestrator) RetryFailed(ctx context.Context, imageID uuid.UUID) (*models.ImageRecord, error) {
	rec, err := o.repo.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusFailed {
		return nil, fmt.Errorf("%w: image %s is '%s', only failed images can be retried",
			models.ErrInvalidState, imageID, rec.Status)
	}

	updated, err := o.repo.UpdateStatus(ctx, imageID, models.StatusPending, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to reset image %s for retry: %w", imageID, err)
	}

	o.recountProject(ctx, updated.ProjectID)

	o.logger.Info("Failed image reset for retry", zap.String("imageID", imageID.String()))
	return updated, nil
}

// recountProject пересчитывает денормализованные счетчики проекта после
// каждого перехода статуса.
func (o *editOrchestrator) recountProject(ctx context.Context, projectID uuid.UUID) {
	if err := o.repo.RecountProject(ctx, projectID); err != nil {
		o.logger.Error("Failed to recount project", zap.String("projectID", projectID.String()), zap.Error(err))
	}
}
