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
)

type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) (*models.UserProfile, error)
	UpsertTx(ctx context.Context, tx pgx.Tx, profile *models.UserProfile) error
}

type PgProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) ProfileRepository {
	return &PgProfileRepository{db: db}
}

func (r *PgProfileRepository) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	return r.get(ctx, r.db, "storage.GetUserProfile", storage.GetUserProfileQuery, userID)
}

func (r *PgProfileRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) (*models.UserProfile, error) {
	return r.get(ctx, tx, "storage.GetUserProfileForUpdate", storage.GetUserProfileForUpdateQuery, userID)
}

func (r *PgProfileRepository) get(ctx context.Context, q DBTX, op, query, userID string) (*models.UserProfile, error) {
	var (
		p         models.UserProfile
		merchants []byte
		hours     []byte
	)
	err := q.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.RiskScore,
		&p.HomeLocation,
		&p.AverageTransactionAmount,
		&p.TransactionCount,
		&merchants,
		&hours,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := decodeCounts(merchants, &p.PreferredMerchants); err != nil {
		return nil, fmt.Errorf("%s: preferred_merchants: %w", op, err)
	}
	if err := decodeCounts(hours, &p.TransactionHours); err != nil {
		return nil, fmt.Errorf("%s: transaction_hours: %w", op, err)
	}
	return &p, nil
}

func (r *PgProfileRepository) UpsertTx(ctx context.Context, tx pgx.Tx, p *models.UserProfile) error {
	const op = "storage.UpsertUserProfile"

	merchants, err := encodeCounts(p.PreferredMerchants)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	hours, err := encodeCounts(p.TransactionHours)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = tx.QueryRow(ctx, storage.UpsertUserProfileQuery,
		p.UserID, p.RiskScore, p.HomeLocation, p.AverageTransactionAmount, p.TransactionCount,
		merchants, hours,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func decodeCounts(raw []byte, dst *map[string]int) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeCounts(m map[string]int) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
