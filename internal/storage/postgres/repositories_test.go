package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleRepository_Create_DuplicateName(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRuleRepository(mock)
	rule := &models.FraudRule{
		Name:      "high_amount",
		Condition: json.RawMessage(`{"field":"amount","operator":">","value":5000}`),
		IsActive:  true,
	}

	mock.ExpectQuery(storage.CreateRuleQuery).
		WithArgs("high_amount", (*string)(nil), []byte(rule.Condition), []byte(`{"flag":false}`), true, 0).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "fraud_rules_rule_name_key"})

	_, err := repo.Create(context.Background(), rule)

	assert.ErrorIs(t, err, custom_err.ErrRuleExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleRepository_ListActive(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRuleRepository(mock)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(storage.ListActiveRulesQuery).
		WillReturnRows(mock.NewRows([]string{
			"id", "rule_name", "rule_description", "rule_condition", "rule_actions", "is_active", "priority",
			"created_at", "updated_at",
		}).
			AddRow(int64(2), "very_high", (*string)(nil), []byte(`{"field":"amount","operator":">","value":9000}`),
				[]byte(`{"risk_score":0.9,"flag":true}`), true, 10, now, (*time.Time)(nil)).
			AddRow(int64(1), "no_actions", (*string)(nil), []byte(`{"field":"currency","operator":"==","value":"EUR"}`),
				[]byte(nil), true, 1, now, (*time.Time)(nil)))

	rules, err := repo.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "very_high", rules[0].Name)
	assert.Equal(t, 0.9, rules[0].Actions.Score())
	assert.True(t, rules[0].Actions.Flag)
	assert.Equal(t, models.DefaultRuleRiskScore, rules[1].Actions.Score())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepository_Insert(t *testing.T) {
	expires := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	rec := &models.IdempotencyRecord{
		Key:         "key-1",
		RequestHash: "h",
		Response:    json.RawMessage(`{"status":"approved"}`),
		ExpiresAt:   expires,
	}

	t.Run("inserted", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewIdempotencyRepository(mock)
		mock.ExpectQuery(storage.InsertIdempotencyKeyQuery).
			WithArgs("key-1", "h", []byte(rec.Response), expires).
			WillReturnRows(mock.NewRows([]string{"created_at"}).AddRow(expires.Add(-24 * time.Hour)))

		ok, err := repo.Insert(context.Background(), rec)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("key already owned", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewIdempotencyRepository(mock)
		mock.ExpectQuery(storage.InsertIdempotencyKeyQuery).
			WithArgs("key-1", "h", []byte(rec.Response), expires).
			WillReturnError(pgx.ErrNoRows)

		ok, err := repo.Insert(context.Background(), rec)

		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestIdempotencyRepository_GetAndDelete(t *testing.T) {
	mock := newMockPool(t)
	repo := NewIdempotencyRepository(mock)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(48 * time.Hour)

	mock.ExpectQuery(storage.GetIdempotencyKeyQuery).
		WithArgs("key-1").
		WillReturnRows(mock.NewRows([]string{"idempotency_key", "request_hash", "response_data", "created_at", "expires_at"}).
			AddRow("key-1", "h", []byte(`{"status":"declined"}`), created, created.Add(24*time.Hour)))
	mock.ExpectExec(storage.DeleteIdempotencyKeyQuery).
		WithArgs("key-1", now).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(storage.DeleteExpiredIdempotencyKeysQuery).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	rec, err := repo.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.True(t, rec.Expired(now))
	assert.JSONEq(t, `{"status":"declined"}`, string(rec.Response))

	require.NoError(t, repo.DeleteExpired(context.Background(), "key-1", now))

	n, err := repo.Purge(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_UpsertTx(t *testing.T) {
	mock := newMockPool(t)
	repo := NewProfileRepository(mock)
	home := "Berlin"
	updated := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	profile := &models.UserProfile{
		UserID:                   "user-1",
		RiskScore:                0.1,
		HomeLocation:             &home,
		AverageTransactionAmount: 50,
		TransactionCount:         2,
		PreferredMerchants:       map[string]int{"m-1": 2},
		TransactionHours:         map[string]int{"13": 2},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(storage.GetUserProfileForUpdateQuery).
		WithArgs("user-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(storage.UpsertUserProfileQuery).
		WithArgs("user-1", 0.1, &home, 50.0, int64(2), []byte(`{"m-1":2}`), []byte(`{"13":2}`)).
		WillReturnRows(mock.NewRows([]string{"updated_at"}).AddRow(&updated))
	mock.ExpectCommit()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.GetForUpdateTx(context.Background(), tx, "user-1")
	assert.ErrorIs(t, err, custom_err.ErrNotFound)

	require.NoError(t, repo.UpsertTx(context.Background(), tx, profile))
	require.NoError(t, tx.Commit(context.Background()))

	require.NotNil(t, profile.UpdatedAt)
	assert.Equal(t, updated, *profile.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_Get(t *testing.T) {
	mock := newMockPool(t)
	repo := NewProfileRepository(mock)

	mock.ExpectQuery(storage.GetUserProfileQuery).
		WithArgs("user-1").
		WillReturnRows(mock.NewRows([]string{
			"user_id", "risk_score", "home_location", "average_transaction_amount", "transaction_count",
			"preferred_merchants", "transaction_hours", "updated_at",
		}).AddRow("user-1", 0.1, (*string)(nil), 42.0, int64(3), []byte(`{"m-1":3}`), []byte(nil), (*time.Time)(nil)))

	p, err := repo.Get(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 42.0, p.AverageTransactionAmount)
	assert.Equal(t, 3, p.PreferredMerchants["m-1"])
	assert.Nil(t, p.TransactionHours)
}

func TestWebhookLogRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewWebhookLogRepository(mock)
	code := 500
	body := "boom"
	entry := &models.WebhookLog{
		TransactionID: "0b6c2d3e-1f2a-4b5c-8d9e-0f1a2b3c4d5e",
		WebhookURL:    "http://merchant.local/hook",
		Payload:       json.RawMessage(`{}`),
		StatusCode:    &code,
		ResponseBody:  &body,
		AttemptNumber: 1,
	}

	mock.ExpectExec(storage.CreateWebhookLogQuery).
		WithArgs(entry.TransactionID, entry.WebhookURL, []byte(`{}`), &code, &body, 1, false, (*string)(nil), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}
