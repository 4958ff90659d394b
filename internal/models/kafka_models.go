package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskKind тип фоновой задачи
type TaskKind string

const (
	TaskFraudAlert      TaskKind = "fraud_alert"
	TaskProfileUpdate   TaskKind = "profile_update"
	TaskMerchantWebhook TaskKind = "merchant_webhook"
)

func (k TaskKind) IsValid() bool {
	return k == TaskFraudAlert || k == TaskProfileUpdate || k == TaskMerchantWebhook
}

// Task конверт задачи, передаваемый через брокер
type Task struct {
	ID        uuid.UUID       `json:"id"`
	Kind      TaskKind        `json:"kind"`
	Key       string          `json:"key"` // partition key, usually user_id
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewTask(kind TaskKind, key string, payload any) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:        uuid.New(),
		Kind:      kind,
		Key:       key,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// FraudAlertPayload событие о подозрительной транзакции
type FraudAlertPayload struct {
	UserID        string  `json:"user_id"`
	TransactionID string  `json:"transaction_id"`
	RiskScore     float64 `json:"risk_score"`
}

// ProfileUpdatePayload данные для пересчёта профиля пользователя
type ProfileUpdatePayload struct {
	UserID          string    `json:"user_id"`
	TransactionID   string    `json:"transaction_id"`
	Amount          float64   `json:"amount"`
	Location        *string   `json:"location,omitempty"`
	MerchantID      *string   `json:"merchant_id,omitempty"`
	TransactionType string    `json:"transaction_type"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// WebhookPayload уведомление мерчанта о решении
type WebhookPayload struct {
	URL           string              `json:"url"`
	TransactionID string              `json:"transaction_id"`
	MerchantID    string              `json:"merchant_id"`
	Decision      TransactionResponse `json:"decision"`
}

// FraudAlertNotification документ об отправленном оповещении
type FraudAlertNotification struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	TransactionID string    `bson:"transaction_id" json:"transaction_id"`
	UserID        string    `bson:"user_id" json:"user_id"`
	RiskScore     float64   `bson:"risk_score" json:"risk_score"`
	Channel       string    `bson:"channel" json:"channel"`
	SentAt        time.Time `bson:"sent_at" json:"sent_at"`
}

// WebhookLog запись о попытке доставки вебхука
type WebhookLog struct {
	TransactionID string
	WebhookURL    string
	Payload       json.RawMessage
	StatusCode    *int
	ResponseBody  *string
	AttemptNumber int
	IsSuccess     bool
	ErrorMessage  *string
	DeliveredAt   *time.Time
}
