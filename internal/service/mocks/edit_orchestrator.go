package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"staging-server/internal/messaging"
	"staging-server/internal/models"
	"staging-server/internal/service"
)

// Mock service.EditOrchestrator
type EditOrchestrator struct {
	mock.Mock
}

func (m *EditOrchestrator) SubmitEdit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).(*service.SubmitResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EditOrchestrator) HandleResult(ctx context.Context, res messaging.EditResultPayload) (*models.ImageRecord, error) {
	args := m.Called(ctx, res)
	if rec, ok := args.Get(0).(*models.ImageRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EditOrchestrator) RetryFailed(ctx context.Context, imageID uuid.UUID) (*models.ImageRecord, error) {
	args := m.Called(ctx, imageID)
	if rec, ok := args.Get(0).(*models.ImageRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}
