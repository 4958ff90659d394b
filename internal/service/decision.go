package service

import "gw-fraud-scoring/internal/models"

const (
	RuleWeight  = 0.4
	ModelWeight = 0.6

	// FraudThreshold and ApproveThreshold overlap on purpose: a score in
	// (0.7, 0.8) is flagged as fraud and still approved.
	FraudThreshold   = 0.7
	ApproveThreshold = 0.8
)

// Decision итог объединения оценок правил и модели
type Decision struct {
	RuleScore  float64
	ModelScore float64
	FinalScore float64
	IsFraud    bool
	IsApproved bool
}

func (d Decision) Status() string {
	if d.IsApproved {
		return models.StatusApproved
	}
	return models.StatusDeclined
}

func (d Decision) Message() string {
	if d.IsApproved {
		return models.MessageApproved
	}
	return models.MessageDeclined
}

func Fuse(ruleScore, modelScore float64) Decision {
	ruleScore = clampUnit(ruleScore)
	modelScore = clampUnit(modelScore)
	final := ruleScore*RuleWeight + modelScore*ModelWeight
	return Decision{
		RuleScore:  ruleScore,
		ModelScore: modelScore,
		FinalScore: final,
		IsFraud:    final > FraudThreshold,
		IsApproved: final < ApproveThreshold,
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
