package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gw-fraud-scoring/internal/custom_err"

	"github.com/google/uuid"
)

const (
	DefaultCurrency        = "USD"
	DefaultTransactionType = "purchase"

	StatusApproved = "approved"
	StatusDeclined = "declined"

	MessageApproved = "Transaction processed successfully"
	MessageDeclined = "Transaction declined due to high risk"
)

// TransactionRequest запрос на проверку транзакции
type TransactionRequest struct {
	UserID          string         `json:"user_id"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	Location        *string        `json:"location"`
	MerchantID      *string        `json:"merchant_id"`
	CardNumberHash  *string        `json:"card_number_hash"`
	TransactionType string         `json:"transaction_type"`
	IdempotencyKey  string         `json:"idempotency_key"`
	Metadata        map[string]any `json:"metadata"`
}

// Normalize applies the request defaults so that equivalent requests hash identically.
func (r TransactionRequest) Normalize() TransactionRequest {
	r.UserID = strings.TrimSpace(r.UserID)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	if r.TransactionType == "" {
		r.TransactionType = DefaultTransactionType
	}
	return r
}

// Validate expects a normalized request. Amount problems wrap ErrInvalidAmount,
// everything else wraps ErrInvalidInput.
func (r TransactionRequest) Validate() error {
	if r.UserID == "" {
		return invalid("user_id is required")
	}
	if len(r.UserID) > 100 {
		return invalid("user_id must be at most 100 characters")
	}
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) || r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", custom_err.ErrInvalidAmount)
	}
	if len(r.Currency) > 3 {
		return invalid("currency must be at most 3 characters")
	}
	if r.IdempotencyKey == "" {
		return invalid("idempotency_key is required")
	}
	if len(r.IdempotencyKey) > 100 {
		return invalid("idempotency_key must be at most 100 characters")
	}
	if len(r.TransactionType) > 50 {
		return invalid("transaction_type must be at most 50 characters")
	}
	if r.Location != nil && len(*r.Location) > 255 {
		return invalid("location must be at most 255 characters")
	}
	if r.MerchantID != nil && len(*r.MerchantID) > 100 {
		return invalid("merchant_id must be at most 100 characters")
	}
	if r.CardNumberHash != nil && len(*r.CardNumberHash) > 64 {
		return invalid("card_number_hash must be at most 64 characters")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", custom_err.ErrInvalidInput, msg)
}

// Attributes returns the field set visible to fraud rules.
func (r TransactionRequest) Attributes() map[string]any {
	attrs := map[string]any{
		"amount":           r.Amount,
		"currency":         r.Currency,
		"user_id":          r.UserID,
		"transaction_type": r.TransactionType,
	}
	if r.Location != nil {
		attrs["location"] = *r.Location
	}
	if r.MerchantID != nil {
		attrs["merchant_id"] = *r.MerchantID
	}
	if r.CardNumberHash != nil {
		attrs["card_number_hash"] = *r.CardNumberHash
	}
	for k, v := range r.Metadata {
		attrs["metadata."+k] = v
	}
	return attrs
}

// TransactionResponse ответ с решением по транзакции
type TransactionResponse struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status" example:"approved"`
	IsFraud       bool      `json:"is_fraud"`
	RiskScore     float64   `json:"risk_score"`
	RuleScore     float64   `json:"rule_score"`
	MLScore       float64   `json:"ml_score"`
	Message       *string   `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transaction запись в неизменяемом журнале транзакций
type Transaction struct {
	ID              int64          `db:"id"`
	TransactionID   uuid.UUID      `db:"transaction_id"`
	UserID          string         `db:"user_id"`
	Amount          float64        `db:"amount"`
	Currency        string         `db:"currency"`
	Location        *string        `db:"location"`
	MerchantID      *string        `db:"merchant_id"`
	CardNumberHash  *string        `db:"card_number_hash"`
	TransactionType string         `db:"transaction_type"`
	RuleScore       float64        `db:"rule_score"`
	MLScore         float64        `db:"ml_score"`
	FinalRiskScore  float64        `db:"final_risk_score"`
	IsFraud         bool           `db:"is_fraud"`
	IsApproved      bool           `db:"is_approved"`
	IdempotencyKey  string         `db:"idempotency_key"`
	RequestHash     string         `db:"request_hash"`
	Metadata        map[string]any `db:"metadata"`
	CreatedAt       time.Time      `db:"created_at"`
}

// ToResponse builds the caller-facing view of a ledger entry.
// History entries carry no message, matching the stored record.
func (t *Transaction) ToResponse(withMessage bool) TransactionResponse {
	resp := TransactionResponse{
		TransactionID: t.TransactionID.String(),
		Status:        StatusDeclined,
		IsFraud:       t.IsFraud,
		RiskScore:     t.FinalRiskScore,
		RuleScore:     t.RuleScore,
		MLScore:       t.MLScore,
		CreatedAt:     t.CreatedAt,
	}
	if t.IsApproved {
		resp.Status = StatusApproved
	}
	if withMessage {
		msg := MessageDeclined
		if t.IsApproved {
			msg = MessageApproved
		}
		resp.Message = &msg
	}
	return resp
}

// UserBalanceResponse баланс пользователя по одобренным транзакциям
type UserBalanceResponse struct {
	UserID   string  `json:"user_id"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// TransactionHistoryResponse страница истории транзакций
type TransactionHistoryResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
}

// HealthResponse состояние сервиса и зависимостей
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
	Redis     string    `json:"redis"`
	Timestamp time.Time `json:"timestamp"`
}
