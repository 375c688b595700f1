package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Mock storage.Store
type Store struct {
	mock.Mock
}

func (m *Store) Save(ctx context.Context, data []byte, fileName string) (string, error) {
	args := m.Called(ctx, data, fileName)
	return args.String(0), args.Error(1)
}

func (m *Store) SaveThumbnail(ctx context.Context, data []byte, fileName string) (string, error) {
	args := m.Called(ctx, data, fileName)
	return args.String(0), args.Error(1)
}

func (m *Store) Remove(ctx context.Context, publicURL string) error {
	args := m.Called(ctx, publicURL)
	return args.Error(0)
}
