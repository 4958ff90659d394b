package service

import "gw-fraud-scoring/internal/models"

// Result is the outcome of a call to a dependency that is allowed to fail.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

func Unavailable[T any](err error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) IsOk() bool { return r.ok }

func (r Result[T]) Err() error { return r.err }

// Or returns the value, or fallback when the dependency was unavailable.
func (r Result[T]) Or(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}

// DegradationPolicy задаёт подстановки для недоступных зависимостей
type DegradationPolicy struct {
	RuleScore  float64
	ModelScore float64
	Profile    func(userID string) *models.UserProfile
}

func DefaultDegradationPolicy() DegradationPolicy {
	return DegradationPolicy{
		RuleScore:  0,
		ModelScore: 0,
		Profile:    models.DefaultUserProfile,
	}
}
