package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRuleManager struct {
	mock.Mock
}

func (m *MockRuleManager) Create(ctx context.Context, req models.CreateRuleRequest) (*models.FraudRule, error) {
	args := m.Called(ctx, req.Name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FraudRule), args.Error(1)
}

func (m *MockRuleManager) List(ctx context.Context) ([]*models.FraudRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.FraudRule), args.Error(1)
}

func TestImportRules_SkipsExisting(t *testing.T) {
	rm := new(MockRuleManager)
	rm.On("Create", mock.Anything, "a").Return(&models.FraudRule{ID: 1, Name: "a"}, nil)
	rm.On("Create", mock.Anything, "b").Return(nil, fmt.Errorf("op: %w", custom_err.ErrRuleExists))
	var out bytes.Buffer

	err := importRules(context.Background(), rm, []models.CreateRuleRequest{{Name: "a"}, {Name: "b"}}, true, &out)

	assert.NoError(t, err)
	assert.Contains(t, out.String(), "создано 1, пропущено 1")
}

func TestImportRules_StopsOnError(t *testing.T) {
	rm := new(MockRuleManager)
	rm.On("Create", mock.Anything, "a").Return(nil, fmt.Errorf("op: %w", custom_err.ErrRuleExists))

	err := importRules(context.Background(), rm, []models.CreateRuleRequest{{Name: "a"}, {Name: "b"}}, false, &bytes.Buffer{})

	assert.ErrorIs(t, err, custom_err.ErrRuleExists)
	rm.AssertNotCalled(t, "Create", mock.Anything, "b")

	rm = new(MockRuleManager)
	rm.On("Create", mock.Anything, "a").Return(nil, errors.New("db down"))
	assert.Error(t, importRules(context.Background(), rm, []models.CreateRuleRequest{{Name: "a"}}, true, &bytes.Buffer{}))
}
