package anomaly

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
)

const syntheticRows = 1000

type Scorer struct {
	path  string
	train TrainConfig
	now   func() time.Time
	log   *slog.Logger

	mu     sync.Mutex
	forest atomic.Pointer[Forest]
}

type Option func(*Scorer)

func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func WithTrainConfig(cfg TrainConfig) Option {
	return func(s *Scorer) { s.train = cfg }
}

// WithForest installs a ready model and skips lazy loading.
func WithForest(f *Forest) Option {
	return func(s *Scorer) { s.forest.Store(f) }
}

func NewScorer(path string, log *slog.Logger, opts ...Option) *Scorer {
	s := &Scorer{
		path:  path,
		train: DefaultTrainConfig(),
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the anomaly risk in [0, 1]; 1 is most anomalous.
func (s *Scorer) Score(ctx context.Context, tx models.TransactionRequest, profile *models.UserProfile) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := s.model()
	if err != nil {
		return 0, err
	}
	decision := f.Decision(Features(tx, profile, s.now()))
	return 1 / (1 + math.Exp(decision)), nil
}

// Warmup loads or trains the model ahead of the first request.
func (s *Scorer) Warmup() error {
	_, err := s.model()
	return err
}

func (s *Scorer) model() (*Forest, error) {
	if f := s.forest.Load(); f != nil {
		return f, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.forest.Load(); f != nil {
		return f, nil
	}

	f, err := s.loadOrTrain()
	if err != nil {
		// модель не сохраняется, следующий вызов повторит попытку
		return nil, fmt.Errorf("%w: %v", custom_err.ErrModelUnavailable, err)
	}
	s.forest.Store(f)
	return f, nil
}

func (s *Scorer) loadOrTrain() (*Forest, error) {
	f, err := LoadForest(s.path)
	if err == nil {
		s.log.Info("модель аномалий загружена", slog.String("path", s.path), slog.Int("trees", len(f.Trees)))
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	s.log.Info("файл модели не найден, обучение модели по умолчанию", slog.String("path", s.path))
	f, err = Train(SyntheticTrainingData(syntheticRows, FeatureCount, s.train.Seed), s.train)
	if err != nil {
		return nil, err
	}
	if err := f.Save(s.path); err != nil {
		s.log.Warn("не удалось сохранить модель", slog.String("path", s.path), slog.String("error", err.Error()))
	}
	return f, nil
}
