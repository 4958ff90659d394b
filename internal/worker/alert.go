package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage/mongodb"
)

const AlertChannelEmail = "email"

// AlertNotifier оповещает о подозрительной транзакции и сохраняет факт отправки
type AlertNotifier struct {
	storage mongodb.AlertStorage
	log     *slog.Logger
	now     func() time.Time
}

func NewAlertNotifier(storage mongodb.AlertStorage, log *slog.Logger) *AlertNotifier {
	return &AlertNotifier{storage: storage, log: log, now: time.Now}
}

// Notify has no mail transport behind it yet; the alert goes to the log and
// to the alert collection. An alert already recorded for the transaction is
// not sent again.
func (n *AlertNotifier) Notify(ctx context.Context, p models.FraudAlertPayload) error {
	const op = "worker.AlertNotifier.Notify"

	if n.alreadySent(ctx, p.TransactionID) {
		n.log.Info("оповещение уже отправлено, пропускаем",
			slog.String("transaction_id", p.TransactionID))
		return nil
	}

	n.log.Warn("оповещение о подозрительной транзакции",
		slog.String("user_id", p.UserID),
		slog.String("transaction_id", p.TransactionID),
		slog.Float64("risk_score", p.RiskScore),
		slog.String("channel", AlertChannelEmail))

	if n.storage == nil {
		return nil
	}

	err := n.storage.SaveAlert(ctx, &models.FraudAlertNotification{
		TransactionID: p.TransactionID,
		UserID:        p.UserID,
		RiskScore:     p.RiskScore,
		Channel:       AlertChannelEmail,
		SentAt:        n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (n *AlertNotifier) alreadySent(ctx context.Context, transactionID string) bool {
	if n.storage == nil {
		return false
	}
	_, err := n.storage.GetAlertByTransactionID(ctx, transactionID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, custom_err.ErrNotFound):
		return false
	default:
		n.log.Warn("не удалось проверить журнал оповещений",
			slog.String("transaction_id", transactionID),
			slog.String("error", err.Error()))
		return false
	}
}
