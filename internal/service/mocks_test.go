package service

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"gw-fraud-scoring/internal/idempotency"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/rules"
)

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	args := m.Called(ctx, tx)
	if fn, ok := args.Get(0).(func(context.Context, *models.Transaction) *models.Transaction); ok {
		return fn(ctx, tx), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) SumApproved(ctx context.Context, userID string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockTransactionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockRuleRepo struct {
	mock.Mock
}

func (m *MockRuleRepo) Create(ctx context.Context, rule *models.FraudRule) (*models.FraudRule, error) {
	args := m.Called(ctx, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FraudRule), args.Error(1)
}

func (m *MockRuleRepo) List(ctx context.Context) ([]*models.FraudRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.FraudRule), args.Error(1)
}

func (m *MockRuleRepo) ListActive(ctx context.Context) ([]*models.FraudRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.FraudRule), args.Error(1)
}

type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockProfileRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) (*models.UserProfile, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockProfileRepo) UpsertTx(ctx context.Context, tx pgx.Tx, profile *models.UserProfile) error {
	args := m.Called(ctx, tx, profile)
	return args.Error(0)
}

type MockProfileCache struct {
	mock.Mock
}

func (m *MockProfileCache) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

func (m *MockProfileCache) Set(ctx context.Context, profile *models.UserProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Resolve(ctx context.Context, key string, req models.TransactionRequest) (idempotency.Resolution, error) {
	args := m.Called(ctx, key, req)
	if fn, ok := args.Get(0).(func(context.Context, string, models.TransactionRequest) idempotency.Resolution); ok {
		return fn(ctx, key, req), args.Error(1)
	}
	return args.Get(0).(idempotency.Resolution), args.Error(1)
}

// Commit returns the response it was given unless the expectation supplies one.
func (m *MockIdempotencyStore) Commit(ctx context.Context, key string, req models.TransactionRequest, resp models.TransactionResponse) (models.TransactionResponse, error) {
	args := m.Called(ctx, key, req, resp)
	if args.Get(0) == nil {
		return resp, args.Error(1)
	}
	return args.Get(0).(models.TransactionResponse), args.Error(1)
}

type MockRuleSource struct {
	mock.Mock
}

func (m *MockRuleSource) Active(ctx context.Context) ([]rules.CompiledRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rules.CompiledRule), args.Error(1)
}

type MockProfileSource struct {
	mock.Mock
}

func (m *MockProfileSource) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, tx models.TransactionRequest, profile *models.UserProfile) (float64, error) {
	args := m.Called(ctx, tx, profile)
	return args.Get(0).(float64), args.Error(1)
}

type submittedTask struct {
	Kind    models.TaskKind
	Key     string
	Payload any
}

// fakeDispatcher records submitted tasks.
type fakeDispatcher struct {
	mu    sync.Mutex
	tasks []submittedTask
}

func (d *fakeDispatcher) Submit(kind models.TaskKind, key string, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, submittedTask{Kind: kind, Key: key, Payload: payload})
	return true
}

func (d *fakeDispatcher) kinds() []models.TaskKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.TaskKind, 0, len(d.tasks))
	for _, t := range d.tasks {
		out = append(out, t.Kind)
	}
	return out
}
