package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage"

	"github.com/jackc/pgx/v5"
)

type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	// Insert returns false when another request already owns the key.
	Insert(ctx context.Context, rec *models.IdempotencyRecord) (bool, error)
	DeleteExpired(ctx context.Context, key string, now time.Time) error
	Purge(ctx context.Context, now time.Time) (int64, error)
}

type PgIdempotencyRepository struct {
	db DBTX
}

func NewIdempotencyRepository(db DBTX) IdempotencyRepository {
	return &PgIdempotencyRepository{db: db}
}

func (r *PgIdempotencyRepository) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	const op = "storage.GetIdempotencyKey"

	var (
		rec      models.IdempotencyRecord
		response []byte
	)
	err := r.db.QueryRow(ctx, storage.GetIdempotencyKeyQuery, key).Scan(
		&rec.Key,
		&rec.RequestHash,
		&response,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rec.Response = response
	return &rec, nil
}

func (r *PgIdempotencyRepository) Insert(ctx context.Context, rec *models.IdempotencyRecord) (bool, error) {
	const op = "storage.InsertIdempotencyKey"

	err := r.db.QueryRow(ctx, storage.InsertIdempotencyKeyQuery,
		rec.Key, rec.RequestHash, []byte(rec.Response), rec.ExpiresAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// DeleteExpired удаляет запись, только если она действительно истекла к моменту now.
func (r *PgIdempotencyRepository) DeleteExpired(ctx context.Context, key string, now time.Time) error {
	const op = "storage.DeleteIdempotencyKey"

	if _, err := r.db.Exec(ctx, storage.DeleteIdempotencyKeyQuery, key, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PgIdempotencyRepository) Purge(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgeIdempotencyKeys"

	tag, err := r.db.Exec(ctx, storage.DeleteExpiredIdempotencyKeysQuery, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}
