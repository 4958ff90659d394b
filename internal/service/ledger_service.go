package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage/postgres"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*page_size inside int32 for any allowed page size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

type Ledger interface {
	Balance(ctx context.Context, userID string) (*models.UserBalanceResponse, error)
	History(ctx context.Context, userID string, page, pageSize int) (*models.TransactionHistoryResponse, error)
}

type LedgerService struct {
	repo postgres.TransactionRepository
	log  *slog.Logger
}

func NewLedgerService(repo postgres.TransactionRepository, log *slog.Logger) *LedgerService {
	return &LedgerService{repo: repo, log: log}
}

// Balance sums approved amounts with decimal arithmetic, rounded to cents.
func (s *LedgerService) Balance(ctx context.Context, userID string) (*models.UserBalanceResponse, error) {
	const op = "service.LedgerService.Balance"

	if userID == "" {
		return nil, fmt.Errorf("%s: %w: user_id is required", op, custom_err.ErrInvalidInput)
	}

	sum, err := s.repo.SumApproved(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.UserBalanceResponse{
		UserID:   userID,
		Balance:  sum.Round(2).InexactFloat64(),
		Currency: models.DefaultCurrency,
	}, nil
}

func (s *LedgerService) History(ctx context.Context, userID string, page, pageSize int) (*models.TransactionHistoryResponse, error) {
	const op = "service.LedgerService.History"

	if userID == "" {
		return nil, fmt.Errorf("%s: %w: user_id is required", op, custom_err.ErrInvalidInput)
	}
	if page < 1 || page > MaxPage {
		return nil, fmt.Errorf("%s: %w: page must be within [1, %d]", op, custom_err.ErrInvalidInput, MaxPage)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%s: %w: page_size must be within [1, %d]", op, custom_err.ErrInvalidInput, MaxPageSize)
	}

	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list, err := s.repo.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.TransactionResponse, 0, len(list))
	for _, t := range list {
		items = append(items, t.ToResponse(false))
	}

	return &models.TransactionHistoryResponse{
		Transactions: items,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}
