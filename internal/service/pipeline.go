package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/idempotency"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/rules"
	"gw-fraud-scoring/internal/storage/postgres"
	"gw-fraud-scoring/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const DefaultLatencyBudget = 200 * time.Millisecond

type IdempotencyStore interface {
	Resolve(ctx context.Context, key string, req models.TransactionRequest) (idempotency.Resolution, error)
	Commit(ctx context.Context, key string, req models.TransactionRequest, resp models.TransactionResponse) (models.TransactionResponse, error)
}

type ModelScorer interface {
	Score(ctx context.Context, tx models.TransactionRequest, profile *models.UserProfile) (float64, error)
}

// TaskSubmitter ставит фоновую задачу в очередь и сразу возвращает управление
type TaskSubmitter interface {
	Submit(kind models.TaskKind, key string, payload any) bool
}

type TransactionProcessor interface {
	Process(ctx context.Context, req models.TransactionRequest) (*Outcome, error)
}

// Outcome is the answer for one submission. Replayed is set when the response
// was produced by an earlier request with the same idempotency key.
type Outcome struct {
	Response models.TransactionResponse
	Replayed bool
}

type PipelineConfig struct {
	LatencyBudget time.Duration
	CacheTimeout  time.Duration
	StoreTimeout  time.Duration
	WebhookURL    string
}

type Pipeline struct {
	ledger     postgres.TransactionRepository
	idem       IdempotencyStore
	rules      RuleSource
	profiles   ProfileSource
	scorer     ModelScorer
	dispatcher TaskSubmitter
	policy     DegradationPolicy
	cfg        PipelineConfig
	log        *slog.Logger
	metrics    *metrics.Collector

	inflight singleflight.Group
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewPipeline(
	ledger postgres.TransactionRepository,
	idem IdempotencyStore,
	ruleSource RuleSource,
	profiles ProfileSource,
	scorer ModelScorer,
	dispatcher TaskSubmitter,
	cfg PipelineConfig,
	log *slog.Logger,
	m *metrics.Collector,
) *Pipeline {
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = DefaultLatencyBudget
	}
	return &Pipeline{
		ledger:     ledger,
		idem:       idem,
		rules:      ruleSource,
		profiles:   profiles,
		scorer:     scorer,
		dispatcher: dispatcher,
		policy:     DefaultDegradationPolicy(),
		cfg:        cfg,
		log:        log,
		metrics:    m,
		now:        time.Now,
		newID:      uuid.New,
	}
}

// Process validates the request and returns the decision for it. Only invalid
// input and idempotency conflicts are rejected; every dependency failure is
// replaced by the degradation policy.
func (p *Pipeline) Process(ctx context.Context, req models.TransactionRequest) (*Outcome, error) {
	const op = "service.Pipeline.Process"

	start := p.now()
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := idempotency.RequestHash(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// одинаковые запросы, пришедшие одновременно, считаются один раз;
	// отмена клиентом не прерывает уже начатую запись
	shared := context.WithoutCancel(ctx)
	v, err, _ := p.inflight.Do(req.IdempotencyKey+":"+hash, func() (any, error) {
		return p.process(shared, req, hash, start)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v.(*Outcome), nil
}

func (p *Pipeline) process(ctx context.Context, req models.TransactionRequest, hash string, start time.Time) (*Outcome, error) {
	log := p.log.With(
		slog.String("idempotency_key", req.IdempotencyKey),
		slog.String("user_id", req.UserID),
	)

	res, err := p.idem.Resolve(ctx, req.IdempotencyKey, req)
	if err != nil {
		return nil, err
	}
	switch res.Kind {
	case idempotency.Hit:
		p.metrics.RecordReplay()
		log.Info("повторный запрос, возвращаем сохранённый ответ",
			slog.String("transaction_id", res.Response.TransactionID))
		return &Outcome{Response: *res.Response, Replayed: true}, nil
	case idempotency.Conflict:
		log.Warn("ключ идемпотентности уже использован с другими параметрами")
		return nil, custom_err.ErrIdempotencyConflict
	}

	decision, triggered := p.evaluate(ctx, req, log)

	entry := &models.Transaction{
		TransactionID:   p.newID(),
		UserID:          req.UserID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Location:        req.Location,
		MerchantID:      req.MerchantID,
		CardNumberHash:  req.CardNumberHash,
		TransactionType: req.TransactionType,
		RuleScore:       decision.RuleScore,
		MLScore:         decision.ModelScore,
		FinalRiskScore:  decision.FinalScore,
		IsFraud:         decision.IsFraud,
		IsApproved:      decision.IsApproved,
		IdempotencyKey:  req.IdempotencyKey,
		RequestHash:     hash,
		Metadata:        req.Metadata,
	}

	createdAt, existing, err := p.persist(ctx, entry, log)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return p.replayLedger(ctx, req, existing, hash, log)
	}

	msg := decision.Message()
	resp := models.TransactionResponse{
		TransactionID: entry.TransactionID.String(),
		Status:        decision.Status(),
		IsFraud:       decision.IsFraud,
		RiskScore:     decision.FinalScore,
		RuleScore:     decision.RuleScore,
		MLScore:       decision.ModelScore,
		Message:       &msg,
		CreatedAt:     createdAt,
	}

	final, err := p.idem.Commit(ctx, req.IdempotencyKey, req, resp)
	if err != nil {
		return nil, err
	}
	if final.TransactionID != resp.TransactionID {
		// параллельный запрос с тем же ключом успел раньше
		p.metrics.RecordReplay()
		return &Outcome{Response: final, Replayed: true}, nil
	}

	p.notify(req, resp, decision, log)

	elapsed := p.now().Sub(start)
	p.metrics.RecordDecision(elapsed, resp.Status, decision.RuleScore, decision.ModelScore, decision.FinalScore)
	if elapsed > p.cfg.LatencyBudget {
		log.Warn("превышен бюджет задержки",
			slog.Duration("elapsed", elapsed),
			slog.Duration("budget", p.cfg.LatencyBudget))
	}

	log.Info("транзакция обработана",
		slog.String("transaction_id", resp.TransactionID),
		slog.String("status", resp.Status),
		slog.Bool("is_fraud", resp.IsFraud),
		slog.Float64("risk_score", resp.RiskScore),
		slog.Int("triggered_rules", len(triggered.Triggered)),
		slog.Duration("elapsed", elapsed))

	return &Outcome{Response: resp}, nil
}

// evaluate runs the rule engine and the anomaly model concurrently. Fusion
// waits for both.
func (p *Pipeline) evaluate(ctx context.Context, req models.TransactionRequest, log *slog.Logger) (Decision, rules.Result) {
	var (
		wg        sync.WaitGroup
		ruleRes   Result[rules.Result]
		modelRes  Result[float64]
		attrs     = req.Attributes()
		fallbackR = rules.Result{Score: p.policy.RuleScore}
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ruleRes = p.evaluateRules(ctx, attrs)
	}()
	go func() {
		defer wg.Done()
		modelRes = p.scoreModel(ctx, req, log)
	}()
	wg.Wait()

	if !ruleRes.IsOk() {
		p.degraded(log, "rules", ruleRes.Err())
	}
	if !modelRes.IsOk() {
		p.degraded(log, "model", modelRes.Err())
	}

	ruleResult := ruleRes.Or(fallbackR)
	return Fuse(ruleResult.Score, modelRes.Or(p.policy.ModelScore)), ruleResult
}

func (p *Pipeline) evaluateRules(ctx context.Context, attrs map[string]any) (res Result[rules.Result]) {
	defer func() {
		if r := recover(); r != nil {
			res = Unavailable[rules.Result](fmt.Errorf("rule evaluation panicked: %v", r))
		}
	}()

	rctx, cancel := withTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	active, err := p.rules.Active(rctx)
	if err != nil {
		return Unavailable[rules.Result](err)
	}
	return Ok(rules.Evaluate(attrs, active))
}

func (p *Pipeline) scoreModel(ctx context.Context, req models.TransactionRequest, log *slog.Logger) (res Result[float64]) {
	defer func() {
		if r := recover(); r != nil {
			res = Unavailable[float64](fmt.Errorf("anomaly scoring panicked: %v", r))
		}
	}()

	profileRes := p.loadProfile(ctx, req.UserID)
	if !profileRes.IsOk() {
		p.degraded(log, "profile", profileRes.Err())
	}
	profile := profileRes.Or(p.policy.Profile(req.UserID))

	score, err := p.scorer.Score(ctx, req, profile)
	if err != nil {
		return Unavailable[float64](err)
	}
	return Ok(score)
}

func (p *Pipeline) loadProfile(ctx context.Context, userID string) Result[*models.UserProfile] {
	if p.profiles == nil {
		return Unavailable[*models.UserProfile](custom_err.ErrDependencyUnavailable)
	}
	pctx, cancel := withTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	profile, err := p.profiles.Get(pctx, userID)
	if err != nil {
		return Unavailable[*models.UserProfile](err)
	}
	return Ok(profile)
}

// persist writes the ledger row. A row already stored under the same key is
// returned as existing; any other failure falls back to a local timestamp.
func (p *Pipeline) persist(ctx context.Context, entry *models.Transaction, log *slog.Logger) (time.Time, *models.Transaction, error) {
	sctx, cancel := withTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	saved, err := p.ledger.Create(sctx, entry)
	if err == nil {
		return saved.CreatedAt, nil, nil
	}

	if errors.Is(err, custom_err.ErrDuplicateRequest) {
		existing, getErr := p.ledger.GetByIdempotencyKey(sctx, entry.IdempotencyKey)
		if getErr == nil {
			return time.Time{}, existing, nil
		}
		err = errors.Join(err, getErr)
	}

	log.Error("не удалось сохранить транзакцию, используем локальное время",
		slog.String("transaction_id", entry.TransactionID.String()),
		slog.String("error", err.Error()))
	p.metrics.RecordDegraded("ledger")
	return p.now().UTC(), nil, nil
}

func (p *Pipeline) replayLedger(ctx context.Context, req models.TransactionRequest, existing *models.Transaction, hash string, log *slog.Logger) (*Outcome, error) {
	if existing.RequestHash != hash {
		p.metrics.RecordConflict()
		log.Warn("в журнале уже есть транзакция с этим ключом и другими параметрами",
			slog.String("transaction_id", existing.TransactionID.String()))
		return nil, custom_err.ErrIdempotencyConflict
	}

	resp := existing.ToResponse(true)
	if _, err := p.idem.Commit(ctx, req.IdempotencyKey, req, resp); err != nil {
		log.Warn("не удалось восстановить ключ идемпотентности", slog.String("error", err.Error()))
	}

	p.metrics.RecordReplay()
	log.Info("ответ восстановлен из журнала транзакций",
		slog.String("transaction_id", resp.TransactionID))
	return &Outcome{Response: resp, Replayed: true}, nil
}

func (p *Pipeline) notify(req models.TransactionRequest, resp models.TransactionResponse, d Decision, log *slog.Logger) {
	if p.dispatcher == nil {
		return
	}

	if d.IsFraud {
		p.dispatcher.Submit(models.TaskFraudAlert, req.UserID, models.FraudAlertPayload{
			UserID:        req.UserID,
			TransactionID: resp.TransactionID,
			RiskScore:     resp.RiskScore,
		})
		log.Warn("обнаружена подозрительная транзакция",
			slog.String("transaction_id", resp.TransactionID),
			slog.Float64("risk_score", resp.RiskScore))
	}

	p.dispatcher.Submit(models.TaskProfileUpdate, req.UserID, models.ProfileUpdatePayload{
		UserID:          req.UserID,
		TransactionID:   resp.TransactionID,
		Amount:          req.Amount,
		Location:        req.Location,
		MerchantID:      req.MerchantID,
		TransactionType: req.TransactionType,
		OccurredAt:      resp.CreatedAt,
	})

	if p.cfg.WebhookURL != "" && req.MerchantID != nil && *req.MerchantID != "" {
		p.dispatcher.Submit(models.TaskMerchantWebhook, req.UserID, models.WebhookPayload{
			URL:           p.cfg.WebhookURL,
			TransactionID: resp.TransactionID,
			MerchantID:    *req.MerchantID,
			Decision:      resp,
		})
	}
}

func (p *Pipeline) degraded(log *slog.Logger, dependency string, err error) {
	attrs := []any{slog.String("dependency", dependency)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	log.Warn("зависимость недоступна, применяем значение по умолчанию", attrs...)
	p.metrics.RecordDegraded(dependency)
}
