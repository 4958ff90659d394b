package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	SumApproved(ctx context.Context, userID string) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type PgTransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) TransactionRepository {
	return &PgTransactionRepository{db: db}
}

// Create вставляет запись журнала. Повтор ключа идемпотентности даёт ErrDuplicateRequest.
func (r *PgTransactionRepository) Create(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	const op = "storage.CreateTransaction"

	var metadata []byte
	if len(t.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(t.Metadata); err != nil {
			return nil, fmt.Errorf("%s: marshal metadata: %w", op, err)
		}
	}

	created := *t
	err := r.db.QueryRow(ctx, storage.CreateTransactionQuery,
		t.TransactionID, t.UserID, t.Amount, t.Currency, t.Location, t.MerchantID, t.CardNumberHash,
		t.TransactionType, t.RuleScore, t.MLScore, t.FinalRiskScore, t.IsFraud, t.IsApproved,
		t.IdempotencyKey, t.RequestHash, metadata,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return nil, custom_err.ErrDuplicateRequest
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

func (r *PgTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	const op = "storage.GetTransactionByIdempotencyKey"

	t, err := scanTransaction(r.db.QueryRow(ctx, storage.GetTransactionByIdempotencyKeyQuery, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *PgTransactionRepository) SumApproved(ctx context.Context, userID string) (decimal.Decimal, error) {
	const op = "storage.SumApproved"

	var raw string
	if err := r.db.QueryRow(ctx, storage.SumApprovedAmountQuery, userID).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	sum, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: parse sum %q: %w", op, raw, err)
	}
	return sum, nil
}

func (r *PgTransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	const op = "storage.ListUserTransactions"

	rows, err := r.db.Query(ctx, storage.ListUserTransactionsQuery, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	transactions := make([]*models.Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return transactions, nil
}

func (r *PgTransactionRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	const op = "storage.CountUserTransactions"

	var total int64
	if err := r.db.QueryRow(ctx, storage.CountUserTransactionsQuery, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		t        models.Transaction
		metadata []byte
	)
	err := row.Scan(
		&t.ID,
		&t.TransactionID,
		&t.UserID,
		&t.Amount,
		&t.Currency,
		&t.Location,
		&t.MerchantID,
		&t.CardNumberHash,
		&t.TransactionType,
		&t.RuleScore,
		&t.MLScore,
		&t.FinalRiskScore,
		&t.IsFraud,
		&t.IsApproved,
		&t.IdempotencyKey,
		&t.RequestHash,
		&metadata,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &t, nil
}
