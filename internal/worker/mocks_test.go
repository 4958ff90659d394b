package worker

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"gw-fraud-scoring/internal/models"
)

type MockProfileUpdater struct {
	mock.Mock
}

func (m *MockProfileUpdater) ApplyTransaction(ctx context.Context, p models.ProfileUpdatePayload) (*models.UserProfile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) Notify(ctx context.Context, p models.FraudAlertPayload) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockWebhookDeliverer struct {
	mock.Mock
}

func (m *MockWebhookDeliverer) Deliver(ctx context.Context, p models.WebhookPayload) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockTaskMarker struct {
	mock.Mock
}

func (m *MockTaskMarker) Seen(ctx context.Context, taskID string) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskMarker) MarkDone(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

type MockAlertStorage struct {
	mock.Mock
}

func (m *MockAlertStorage) SaveAlert(ctx context.Context, alert *models.FraudAlertNotification) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockAlertStorage) GetAlertByTransactionID(ctx context.Context, transactionID string) (*models.FraudAlertNotification, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FraudAlertNotification), args.Error(1)
}

func (m *MockAlertStorage) Close() error {
	return m.Called().Error(0)
}

// memoryWebhookLogs collects webhook log rows in memory.
type memoryWebhookLogs struct {
	mu      sync.Mutex
	entries []models.WebhookLog
}

func (l *memoryWebhookLogs) Create(_ context.Context, e *models.WebhookLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *e)
	return nil
}
