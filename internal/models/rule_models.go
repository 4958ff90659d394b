package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gw-fraud-scoring/internal/custom_err"
)

// DefaultRuleRiskScore is applied when a triggered rule does not set risk_score.
const DefaultRuleRiskScore = 0.5

// RuleActions действия, применяемые при срабатывании правила
type RuleActions struct {
	RiskScore *float64 `json:"risk_score,omitempty" yaml:"risk_score,omitempty"`
	Flag      bool     `json:"flag" yaml:"flag"`
}

func (a RuleActions) Score() float64 {
	if a.RiskScore == nil {
		return DefaultRuleRiskScore
	}
	return *a.RiskScore
}

// FraudRule правило антифрод-проверки
type FraudRule struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"rule_name" db:"rule_name"`
	Description *string         `json:"rule_description" db:"rule_description"`
	Condition   json.RawMessage `json:"rule_condition" db:"rule_condition" swaggertype:"object"`
	Actions     RuleActions     `json:"rule_actions" db:"rule_actions"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	Priority    int             `json:"priority" db:"priority"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at" db:"updated_at"`
}

// CreateRuleRequest запрос на создание правила
type CreateRuleRequest struct {
	Name        string          `json:"rule_name"`
	Description *string         `json:"rule_description"`
	Condition   json.RawMessage `json:"rule_condition" swaggertype:"object"`
	Actions     RuleActions     `json:"rule_actions"`
	Priority    int             `json:"priority"`
	IsActive    *bool           `json:"is_active"`
}

func (r CreateRuleRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule_name is required", custom_err.ErrInvalidInput)
	}
	if len(r.Name) > 100 {
		return fmt.Errorf("%w: rule_name must be at most 100 characters", custom_err.ErrInvalidInput)
	}
	if len(r.Condition) == 0 || string(r.Condition) == "null" {
		return fmt.Errorf("%w: rule_condition is required", custom_err.ErrInvalidInput)
	}
	if r.Priority < 0 {
		return fmt.Errorf("%w: priority must be non-negative", custom_err.ErrInvalidInput)
	}
	if s := r.Actions.RiskScore; s != nil && (*s < 0 || *s > 1) {
		return fmt.Errorf("%w: rule_actions.risk_score must be within [0, 1]", custom_err.ErrInvalidInput)
	}
	return nil
}

// ToRule applies defaults; is_active defaults to true.
func (r CreateRuleRequest) ToRule() *FraudRule {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &FraudRule{
		Name:        r.Name,
		Description: r.Description,
		Condition:   r.Condition,
		Actions:     r.Actions,
		IsActive:    active,
		Priority:    r.Priority,
	}
}
