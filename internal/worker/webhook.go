package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage/postgres"
	"gw-fraud-scoring/pkg/metrics"
	"gw-fraud-scoring/pkg/signer"
)

const (
	webhookEvent       = "transaction.decision"
	attemptHeader      = "X-Webhook-Attempt"
	maxLoggedBodyBytes = 4096
)

var ErrWebhookRejected = errors.New("webhook rejected by merchant")

type webhookBody struct {
	Event         string                     `json:"event"`
	TransactionID string                     `json:"transaction_id"`
	MerchantID    string                     `json:"merchant_id"`
	Decision      models.TransactionResponse `json:"decision"`
}

type WebhookSender struct {
	client  *http.Client
	signer  *signer.Signer
	logs    postgres.WebhookLogRepository
	cfg     config.WebhookConfig
	log     *slog.Logger
	metrics *metrics.Collector
	sleep   sleepFunc
	now     func() time.Time
}

func NewWebhookSender(cfg config.WebhookConfig, logs postgres.WebhookLogRepository, log *slog.Logger, m *metrics.Collector) *WebhookSender {
	return &WebhookSender{
		client:  &http.Client{},
		signer:  signer.New(cfg.Secret),
		logs:    logs,
		cfg:     cfg,
		log:     log,
		metrics: m,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Deliver posts the decision to the merchant endpoint. Every attempt is
// recorded in webhook_logs; a 2xx response ends the loop.
func (s *WebhookSender) Deliver(ctx context.Context, p models.WebhookPayload) error {
	const op = "worker.WebhookSender.Deliver"

	body, err := json.Marshal(webhookBody{
		Event:         webhookEvent,
		TransactionID: p.TransactionID,
		MerchantID:    p.MerchantID,
		Decision:      p.Decision,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = retry(ctx, s.cfg.RetryAttempts, s.cfg.BackoffBase, s.sleep, func(attempt int) error {
		return s.attempt(ctx, p, body, attempt+1)
	})
	if err != nil {
		s.log.Error("вебхук не доставлен",
			slog.String("op", op),
			slog.String("transaction_id", p.TransactionID),
			slog.String("url", p.URL),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *WebhookSender) attempt(ctx context.Context, p models.WebhookPayload, body []byte, number int) error {
	actx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	entry := &models.WebhookLog{
		TransactionID: p.TransactionID,
		WebhookURL:    p.URL,
		Payload:       body,
		AttemptNumber: number,
	}

	status, respBody, err := s.post(actx, p.URL, body, number)
	if status != 0 {
		entry.StatusCode = &status
		entry.ResponseBody = &respBody
	}
	switch {
	case err != nil:
	case status < 200 || status >= 300:
		err = fmt.Errorf("%w: status %d", ErrWebhookRejected, status)
	default:
		delivered := s.now().UTC()
		entry.IsSuccess = true
		entry.DeliveredAt = &delivered
	}
	if err != nil {
		msg := err.Error()
		entry.ErrorMessage = &msg
	}

	s.metrics.RecordWebhookAttempt(entry.IsSuccess)
	s.record(ctx, entry)

	s.log.Info("попытка доставки вебхука",
		slog.String("transaction_id", p.TransactionID),
		slog.Int("attempt", number),
		slog.Int("status_code", status),
		slog.Bool("success", entry.IsSuccess))
	return err
}

func (s *WebhookSender) post(ctx context.Context, url string, body []byte, attempt int) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(attemptHeader, strconv.Itoa(attempt))
	if s.signer.Enabled() {
		req.Header.Set(signer.SignatureHeader, s.signer.Sign(body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
	return resp.StatusCode, string(data), nil
}

func (s *WebhookSender) record(ctx context.Context, entry *models.WebhookLog) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("не удалось записать лог вебхука",
			slog.String("transaction_id", entry.TransactionID),
			slog.String("error", err.Error()))
	}
}
