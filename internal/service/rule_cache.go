package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gw-fraud-scoring/internal/rules"
	"gw-fraud-scoring/internal/storage/postgres"
)

const DefaultRuleCacheTTL = 30 * time.Second

type RuleSource interface {
	Active(ctx context.Context) ([]rules.CompiledRule, error)
}

// RuleCache держит скомпилированный набор активных правил
type RuleCache struct {
	repo postgres.RuleRepository
	ttl  time.Duration
	log  *slog.Logger
	now  func() time.Time

	mu       sync.RWMutex
	compiled []rules.CompiledRule
	loadedAt time.Time
	loaded   bool
}

func NewRuleCache(repo postgres.RuleRepository, ttl time.Duration, log *slog.Logger) *RuleCache {
	if ttl <= 0 {
		ttl = DefaultRuleCacheTTL
	}
	return &RuleCache{
		repo: repo,
		ttl:  ttl,
		log:  log,
		now:  time.Now,
	}
}

// Active returns the cached rule set, reloading it once the TTL has passed.
// A failed reload keeps serving the previous set; an error is returned only
// when nothing was ever loaded.
func (c *RuleCache) Active(ctx context.Context) ([]rules.CompiledRule, error) {
	const op = "service.RuleCache.Active"

	c.mu.RLock()
	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		compiled := c.compiled
		c.mu.RUnlock()
		return compiled, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// другой запрос мог уже перезагрузить набор
	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		return c.compiled, nil
	}

	list, err := c.repo.ListActive(ctx)
	if err != nil {
		if c.loaded {
			c.log.Warn("не удалось обновить правила, используем прежний набор",
				slog.String("op", op),
				slog.String("error", err.Error()))
			return c.compiled, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.compiled = rules.CompileRules(list, c.log)
	c.loadedAt = c.now()
	c.loaded = true

	c.log.Debug("набор правил обновлён", slog.Int("rules", len(c.compiled)))
	return c.compiled, nil
}

// Invalidate forces a reload on the next call. The previous set stays as a
// fallback in case the reload fails.
func (c *RuleCache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}
