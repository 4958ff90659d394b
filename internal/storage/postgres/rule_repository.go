package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage"

	"github.com/jackc/pgx/v5"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *models.FraudRule) (*models.FraudRule, error)
	List(ctx context.Context) ([]*models.FraudRule, error)
	ListActive(ctx context.Context) ([]*models.FraudRule, error)
}

type PgRuleRepository struct {
	db DBTX
}

func NewRuleRepository(db DBTX) RuleRepository {
	return &PgRuleRepository{db: db}
}

func (r *PgRuleRepository) Create(ctx context.Context, rule *models.FraudRule) (*models.FraudRule, error) {
	const op = "storage.CreateRule"

	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal actions: %w", op, err)
	}

	created := *rule
	err = r.db.QueryRow(ctx, storage.CreateRuleQuery,
		rule.Name, rule.Description, []byte(rule.Condition), actions, rule.IsActive, rule.Priority,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return nil, custom_err.ErrRuleExists
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

func (r *PgRuleRepository) List(ctx context.Context) ([]*models.FraudRule, error) {
	return r.list(ctx, "storage.ListRules", storage.ListRulesQuery)
}

func (r *PgRuleRepository) ListActive(ctx context.Context) ([]*models.FraudRule, error) {
	return r.list(ctx, "storage.ListActiveRules", storage.ListActiveRulesQuery)
}

func (r *PgRuleRepository) list(ctx context.Context, op, query string) ([]*models.FraudRule, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	rules := make([]*models.FraudRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rules, nil
}

func scanRule(row pgx.Row) (*models.FraudRule, error) {
	var (
		rule      models.FraudRule
		condition []byte
		actions   []byte
	)
	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&condition,
		&actions,
		&rule.IsActive,
		&rule.Priority,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.Condition = json.RawMessage(condition)
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
	}
	return &rule, nil
}
