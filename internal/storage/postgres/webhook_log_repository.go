package postgres

import (
	"context"
	"fmt"

	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage"
)

type WebhookLogRepository interface {
	Create(ctx context.Context, entry *models.WebhookLog) error
}

type PgWebhookLogRepository struct {
	db DBTX
}

func NewWebhookLogRepository(db DBTX) WebhookLogRepository {
	return &PgWebhookLogRepository{db: db}
}

func (r *PgWebhookLogRepository) Create(ctx context.Context, e *models.WebhookLog) error {
	const op = "storage.CreateWebhookLog"

	_, err := r.db.Exec(ctx, storage.CreateWebhookLogQuery,
		e.TransactionID, e.WebhookURL, []byte(e.Payload), e.StatusCode, e.ResponseBody,
		e.AttemptNumber, e.IsSuccess, e.ErrorMessage, e.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
