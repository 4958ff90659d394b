package handlers

import (
	"context"

	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, req models.TransactionRequest) (*service.Outcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Outcome), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Balance(ctx context.Context, userID string) (*models.UserBalanceResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBalanceResponse), args.Error(1)
}

func (m *MockLedger) History(ctx context.Context, userID string, page, pageSize int) (*models.TransactionHistoryResponse, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionHistoryResponse), args.Error(1)
}

type MockRuleManager struct {
	mock.Mock
}

func (m *MockRuleManager) Create(ctx context.Context, req models.CreateRuleRequest) (*models.FraudRule, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FraudRule), args.Error(1)
}

func (m *MockRuleManager) List(ctx context.Context) ([]*models.FraudRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.FraudRule), args.Error(1)
}

type MockHealth struct {
	mock.Mock
}

func (m *MockHealth) Check(ctx context.Context) models.HealthResponse {
	args := m.Called(ctx)
	return args.Get(0).(models.HealthResponse)
}
