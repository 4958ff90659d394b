package service

import (
	"context"
	"fmt"
	"log/slog"

	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/rules"
	"gw-fraud-scoring/internal/storage/postgres"
)

type RuleManager interface {
	Create(ctx context.Context, req models.CreateRuleRequest) (*models.FraudRule, error)
	List(ctx context.Context) ([]*models.FraudRule, error)
}

type RuleService struct {
	repo  postgres.RuleRepository
	cache *RuleCache
	log   *slog.Logger
}

func NewRuleService(repo postgres.RuleRepository, cache *RuleCache, log *slog.Logger) *RuleService {
	return &RuleService{repo: repo, cache: cache, log: log}
}

func (s *RuleService) Create(ctx context.Context, req models.CreateRuleRequest) (*models.FraudRule, error) {
	const op = "service.RuleService.Create"

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := rules.Validate(req.Condition); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.repo.Create(ctx, req.ToRule())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		s.cache.Invalidate()
	}

	s.log.Info("создано правило",
		slog.Int64("rule_id", created.ID),
		slog.String("rule_name", created.Name),
		slog.Int("priority", created.Priority),
		slog.Bool("is_active", created.IsActive))
	return created, nil
}

func (s *RuleService) List(ctx context.Context) ([]*models.FraudRule, error) {
	const op = "service.RuleService.List"

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}
