package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"staging-server/internal/provider"
)

// Mock provider.Client
type Client struct {
	mock.Mock
}

func (m *Client) EditImage(ctx context.Context, req provider.EditRequest) (*provider.EditResult, error) {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).(*provider.EditResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}
