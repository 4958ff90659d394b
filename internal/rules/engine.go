package rules

import (
	"log/slog"

	"gw-fraud-scoring/internal/models"
)

// CompiledRule активное правило с уже разобранным условием.
type CompiledRule struct {
	ID        int64
	Name      string
	Priority  int
	Actions   models.RuleActions
	Condition Condition
}

type TriggeredRule struct {
	RuleID    int64   `json:"rule_id"`
	RuleName  string  `json:"rule_name"`
	RiskScore float64 `json:"risk_score"`
}

// Result итог проверки транзакции по набору правил.
type Result struct {
	Score     float64         `json:"rule_score"`
	Triggered []TriggeredRule `json:"triggered_rules"`
	Flags     []string        `json:"flags"`
}

// CompileRules compiles each rule once. Broken conditions are logged and kept
// as Never so that one bad rule cannot take down evaluation.
func CompileRules(list []*models.FraudRule, log *slog.Logger) []CompiledRule {
	compiled := make([]CompiledRule, 0, len(list))
	for _, r := range list {
		cond, err := Compile(r.Condition)
		if err != nil {
			log.Warn("не удалось разобрать условие правила",
				slog.Int64("rule_id", r.ID),
				slog.String("rule_name", r.Name),
				slog.String("error", err.Error()))
		}
		compiled = append(compiled, CompiledRule{
			ID:        r.ID,
			Name:      r.Name,
			Priority:  r.Priority,
			Actions:   r.Actions,
			Condition: cond,
		})
	}
	return compiled
}

// Evaluate applies every rule; the score is the maximum risk_score among
// triggered rules, clamped to [0, 1].
func Evaluate(attrs map[string]any, list []CompiledRule) Result {
	res := Result{
		Triggered: []TriggeredRule{},
		Flags:     []string{},
	}
	for _, r := range list {
		if !r.Condition.Match(attrs) {
			continue
		}
		score := r.Actions.Score()
		if score > res.Score {
			res.Score = score
		}
		if r.Actions.Flag {
			res.Flags = append(res.Flags, r.Name)
		}
		res.Triggered = append(res.Triggered, TriggeredRule{
			RuleID:    r.ID,
			RuleName:  r.Name,
			RiskScore: score,
		})
	}
	res.Score = clamp(res.Score)
	return res
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
