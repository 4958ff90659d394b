package models

import "time"

const DefaultProfileRiskScore = 0.1

// UserProfile поведенческий профиль пользователя (кэш, не источник истины)
type UserProfile struct {
	UserID                   string         `json:"user_id"`
	RiskScore                float64        `json:"risk_score"`
	HomeLocation             *string        `json:"home_location"`
	AverageTransactionAmount float64        `json:"average_transaction_amount"`
	TransactionCount         int64          `json:"transaction_count"`
	PreferredMerchants       map[string]int `json:"preferred_merchants,omitempty"`
	TransactionHours         map[string]int `json:"transaction_hours,omitempty"`
	UpdatedAt                *time.Time     `json:"updated_at,omitempty"`
}

// DefaultUserProfile is used until the first profile update lands.
func DefaultUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:    userID,
		RiskScore: DefaultProfileRiskScore,
	}
}
