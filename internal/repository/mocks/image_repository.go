package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"staging-server/internal/models"
)

// Mock ImageRepository
type ImageRepository struct {
	mock.Mock
}

func (m *ImageRepository) Create(ctx context.Context, rec *models.ImageRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *ImageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*models.ImageRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImageRepository) ListChain(ctx context.Context, rootID uuid.UUID) ([]models.ImageRecord, error) {
	args := m.Called(ctx, rootID)
	if recs, ok := args.Get(0).([]models.ImageRecord); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImageRepository) LatestVersion(ctx context.Context, rootID uuid.UUID) (int, error) {
	args := m.Called(ctx, rootID)
	return args.Int(0), args.Error(1)
}

func (m *ImageRepository) CreateNextVersion(ctx context.Context, rootID uuid.UUID, truncateAfter *int, rec *models.ImageRecord) (*models.ImageRecord, []models.ImageRecord, error) {
	args := m.Called(ctx, rootID, truncateAfter, rec)
	var created *models.ImageRecord
	if c, ok := args.Get(0).(*models.ImageRecord); ok {
		created = c
	}
	var truncated []models.ImageRecord
	if t, ok := args.Get(1).([]models.ImageRecord); ok {
		truncated = t
	}
	return created, truncated, args.Error(2)
}

func (m *ImageRepository) TruncateAfter(ctx context.Context, rootID uuid.UUID, afterVersion int) ([]models.ImageRecord, error) {
	args := m.Called(ctx, rootID, afterVersion)
	if recs, ok := args.Get(0).([]models.ImageRecord); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ImageStatus, resultURL, errorMessage *string) (*models.ImageRecord, error) {
	args := m.Called(ctx, id, status, resultURL, errorMessage)
	if rec, ok := args.Get(0).(*models.ImageRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImageRepository) RecountProject(ctx context.Context, projectID uuid.UUID) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *ImageRepository) SetProjectThumbnailIfEmpty(ctx context.Context, projectID uuid.UUID, url string) error {
	args := m.Called(ctx, projectID, url)
	return args.Error(0)
}

// Mock EditJobStore
type EditJobStore struct {
	mock.Mock
}

func (m *EditJobStore) SaveJob(ctx context.Context, job *models.EditJob, ttl time.Duration) error {
	args := m.Called(ctx, job, ttl)
	return args.Error(0)
}

func (m *EditJobStore) GetJob(ctx context.Context, taskID string) (*models.EditJob, error) {
	args := m.Called(ctx, taskID)
	if job, ok := args.Get(0).(*models.EditJob); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EditJobStore) DeleteJob(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}
