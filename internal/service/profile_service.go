package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage/cache"
	"gw-fraud-scoring/internal/storage/postgres"

	"github.com/jackc/pgx/v5"
)

type ProfileSource interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
}

type ProfileService struct {
	cache     cache.ProfileCache
	repo      postgres.ProfileRepository
	txManager TxManager
	log       *slog.Logger
	now       func() time.Time
}

func NewProfileService(c cache.ProfileCache, repo postgres.ProfileRepository, txManager TxManager, log *slog.Logger) *ProfileService {
	return &ProfileService{
		cache:     c,
		repo:      repo,
		txManager: txManager,
		log:       log,
		now:       time.Now,
	}
}

// Get reads the profile from Redis, then from Postgres. An unknown user gets
// the default profile, which is cached so the next lookup stays in Redis.
// An error means neither store answered.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	const op = "service.ProfileService.Get"

	cached, cacheErr := s.cache.Get(ctx, userID)
	if cacheErr == nil {
		return cached, nil
	}
	if !errors.Is(cacheErr, custom_err.ErrNotFound) {
		s.log.Warn("кэш профилей недоступен",
			slog.String("op", op),
			slog.String("user_id", userID),
			slog.String("error", cacheErr.Error()))
	}

	profile, err := s.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, custom_err.ErrNotFound):
		profile = models.DefaultUserProfile(userID)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, errors.Join(cacheErr, err))
	}

	if errors.Is(cacheErr, custom_err.ErrNotFound) {
		if err := s.cache.Set(ctx, profile); err != nil {
			s.log.Debug("профиль не записан в кэш", slog.String("error", err.Error()))
		}
	}
	return profile, nil
}

// ApplyTransaction folds one transaction into the user's profile under a row
// lock and refreshes the cached copy after commit.
func (s *ProfileService) ApplyTransaction(ctx context.Context, p models.ProfileUpdatePayload) (*models.UserProfile, error) {
	const op = "service.ProfileService.ApplyTransaction"

	if p.UserID == "" {
		return nil, fmt.Errorf("%s: %w: user_id is required", op, custom_err.ErrInvalidInput)
	}

	var updated *models.UserProfile
	err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		profile, err := s.repo.GetForUpdateTx(ctx, tx, p.UserID)
		if errors.Is(err, custom_err.ErrNotFound) {
			profile = models.DefaultUserProfile(p.UserID)
		} else if err != nil {
			return err
		}

		occurredAt := p.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = s.now()
		}
		foldTransaction(profile, p, occurredAt)

		if err := s.repo.UpsertTx(ctx, tx, profile); err != nil {
			return err
		}
		updated = profile
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, updated); err != nil {
		s.log.Warn("профиль обновлён в БД, но не в кэше",
			slog.String("op", op),
			slog.String("user_id", p.UserID),
			slog.String("error", err.Error()))
	}

	s.log.Info("профиль пользователя обновлён",
		slog.String("user_id", p.UserID),
		slog.String("transaction_id", p.TransactionID),
		slog.Int64("transaction_count", updated.TransactionCount))
	return updated, nil
}

func foldTransaction(profile *models.UserProfile, p models.ProfileUpdatePayload, at time.Time) {
	n := float64(profile.TransactionCount)
	profile.AverageTransactionAmount = (profile.AverageTransactionAmount*n + p.Amount) / (n + 1)
	profile.TransactionCount++

	if profile.HomeLocation == nil && p.Location != nil && *p.Location != "" {
		home := *p.Location
		profile.HomeLocation = &home
	}

	if profile.TransactionHours == nil {
		profile.TransactionHours = make(map[string]int)
	}
	profile.TransactionHours[strconv.Itoa(at.UTC().Hour())]++

	if p.MerchantID != nil && *p.MerchantID != "" {
		if profile.PreferredMerchants == nil {
			profile.PreferredMerchants = make(map[string]int)
		}
		profile.PreferredMerchants[*p.MerchantID]++
	}
}
