package storage

const (
	// Transaction ledger queries
	CreateTransactionQuery = `
		INSERT INTO transactions (
			transaction_id, user_id, amount, currency, location, merchant_id, card_number_hash,
			transaction_type, rule_score, ml_score, final_risk_score, is_fraud, is_approved,
			idempotency_key, request_hash, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at
	`

	GetTransactionByIdempotencyKeyQuery = `
		SELECT id, transaction_id, user_id, amount, currency, location, merchant_id, card_number_hash,
		       transaction_type, rule_score, ml_score, final_risk_score, is_fraud, is_approved,
		       idempotency_key, request_hash, metadata, created_at
		FROM transactions
		WHERE idempotency_key = $1
	`

	// Сумма одобренных транзакций; numeric -> text, чтобы не терять точность
	SumApprovedAmountQuery = `
		SELECT COALESCE(SUM(amount::numeric), 0)::text
		FROM transactions
		WHERE user_id = $1 AND is_approved = TRUE
	`

	ListUserTransactionsQuery = `
		SELECT id, transaction_id, user_id, amount, currency, location, merchant_id, card_number_hash,
		       transaction_type, rule_score, ml_score, final_risk_score, is_fraud, is_approved,
		       idempotency_key, request_hash, metadata, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	CountUserTransactionsQuery = `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1
	`

	// Fraud rule queries
	CreateRuleQuery = `
		INSERT INTO fraud_rules (rule_name, rule_description, rule_condition, rule_actions, is_active, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	ListRulesQuery = `
		SELECT id, rule_name, rule_description, rule_condition, rule_actions, is_active, priority, created_at, updated_at
		FROM fraud_rules
		ORDER BY priority DESC, created_at DESC
	`

	ListActiveRulesQuery = `
		SELECT id, rule_name, rule_description, rule_condition, rule_actions, is_active, priority, created_at, updated_at
		FROM fraud_rules
		WHERE is_active = TRUE
		ORDER BY priority DESC, created_at DESC
	`

	// Idempotency queries
	GetIdempotencyKeyQuery = `
		SELECT idempotency_key, request_hash, response_data, created_at, expires_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
	`

	// Пустой результат означает, что ключ уже занят другим запросом
	InsertIdempotencyKeyQuery = `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, response_data, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at
	`

	DeleteIdempotencyKeyQuery = `
		DELETE FROM idempotency_keys
		WHERE idempotency_key = $1 AND expires_at <= $2
	`

	DeleteExpiredIdempotencyKeysQuery = `
		DELETE FROM idempotency_keys
		WHERE expires_at <= $1
	`

	// User profile queries
	GetUserProfileQuery = `
		SELECT user_id, risk_score, home_location, average_transaction_amount, transaction_count,
		       preferred_merchants, transaction_hours, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`

	// Блокировка строки профиля на время пересчёта
	GetUserProfileForUpdateQuery = `
		SELECT user_id, risk_score, home_location, average_transaction_amount, transaction_count,
		       preferred_merchants, transaction_hours, updated_at
		FROM user_profiles
		WHERE user_id = $1
		FOR UPDATE
	`

	UpsertUserProfileQuery = `
		INSERT INTO user_profiles (
			user_id, risk_score, home_location, average_transaction_amount, transaction_count,
			preferred_merchants, transaction_hours, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			risk_score                 = EXCLUDED.risk_score,
			home_location              = EXCLUDED.home_location,
			average_transaction_amount = EXCLUDED.average_transaction_amount,
			transaction_count          = EXCLUDED.transaction_count,
			preferred_merchants        = EXCLUDED.preferred_merchants,
			transaction_hours          = EXCLUDED.transaction_hours,
			updated_at                 = NOW()
		RETURNING updated_at
	`

	// Webhook delivery log
	CreateWebhookLogQuery = `
		INSERT INTO webhook_logs (
			transaction_id, webhook_url, payload, status_code, response_body,
			attempt_number, is_success, error_message, delivered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	// Health
	PingQuery = `SELECT 1`
)
