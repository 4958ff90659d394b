package idempotency

import (
	"context"
	"time"

	"gw-fraud-scoring/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IdempotencyRecord), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, rec *models.IdempotencyRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IdempotencyRecord), args.Error(1)
}

func (m *MockRepo) Insert(ctx context.Context, rec *models.IdempotencyRecord) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) DeleteExpired(ctx context.Context, key string, now time.Time) error {
	args := m.Called(ctx, key, now)
	return args.Error(0)
}

func (m *MockRepo) Purge(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
