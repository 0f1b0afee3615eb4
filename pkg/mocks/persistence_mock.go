package mocks

import (
	"context"

	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

var _ persistence.Persistence = (*MockPersistence)(nil)

func (m *MockPersistence) Watches(ctx context.Context) ([]*models.Watch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Watch), args.Error(1)
}

func (m *MockPersistence) SaveWatch(ctx context.Context, watch *models.Watch) error {
	args := m.Called(ctx, watch)

	return args.Error(0)
}

func (m *MockPersistence) WatchByID(ctx context.Context, id string) (*models.Watch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Watch), args.Error(1)
}

func (m *MockPersistence) DeleteWatch(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) SaveWatchStatus(ctx context.Context, watchID string, status models.WatchStatus) error {
	args := m.Called(ctx, watchID, status)

	return args.Error(0)
}

func (m *MockPersistence) SaveRecord(ctx context.Context, record *models.WatchRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockPersistence) Records(ctx context.Context, watchID string, limit int) ([]*models.WatchRecord, error) {
	args := m.Called(ctx, watchID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WatchRecord), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
