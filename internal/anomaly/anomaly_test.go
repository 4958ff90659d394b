package anomaly

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

// 2024-03-04 is a Monday.
var monday = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func TestFeatures_NoProfile(t *testing.T) {
	f := Features(models.TransactionRequest{Amount: 120}, nil, monday)

	assert.Equal(t, []float64{120, 14, 0, 1, 0, 0}, f)
}

func TestFeatures_WithProfile(t *testing.T) {
	profile := &models.UserProfile{
		HomeLocation:             strPtr("Berlin"),
		AverageTransactionAmount: 100,
		TransactionCount:         2500,
	}
	sunday := monday.AddDate(0, 0, 6)

	f := Features(models.TransactionRequest{Amount: 150, Location: strPtr("Lagos")}, profile, sunday)
	assert.Equal(t, []float64{150, 14, 6, 0.5, 1, 1}, f)

	f = Features(models.TransactionRequest{Amount: 100, Location: strPtr("Berlin")}, profile, sunday)
	assert.Equal(t, 0.0, f[3])
	assert.Equal(t, 0.0, f[4])

	f = Features(models.TransactionRequest{Amount: 100}, profile, sunday)
	assert.Equal(t, 1.0, f[4], "missing location differs from a known home")

	f = Features(models.TransactionRequest{Amount: 100, Location: strPtr("Lagos")},
		&models.UserProfile{TransactionCount: 10}, sunday)
	assert.Equal(t, 1.0, f[3], "zero average gives full deviation")
	assert.Equal(t, 0.0, f[4], "no home location")
	assert.Equal(t, 0.01, f[5])
}

func TestTrain_DeterministicAndSeparatesOutliers(t *testing.T) {
	data := SyntheticTrainingData(1000, FeatureCount, 42)

	a, err := Train(data, DefaultTrainConfig())
	require.NoError(t, err)
	b, err := Train(data, DefaultTrainConfig())
	require.NoError(t, err)

	assert.Equal(t, a.Offset, b.Offset)
	assert.Len(t, a.Trees, 100)
	assert.Equal(t, 256, a.SampleSize)

	normal := []float64{0, 0, 0, 0, 0, 0}
	outlier := []float64{8, 8, 8, 8, 8, 8}
	assert.Greater(t, a.Decision(normal), a.Decision(outlier))
	assert.Less(t, a.Decision(outlier), 0.0)

	// about a tenth of the training set falls below the offset
	below := 0
	for _, row := range data {
		if a.Decision(row) < 0 {
			below++
		}
	}
	assert.InDelta(t, 100, below, 5)
}

func TestTrain_RejectsBadInput(t *testing.T) {
	_, err := Train(nil, DefaultTrainConfig())
	assert.Error(t, err)

	_, err = Train([][]float64{{1, 2}, {1}}, DefaultTrainConfig())
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 1.0, percentile([]float64{4, 1, 3, 2}, 0))
	assert.Equal(t, 4.0, percentile([]float64{4, 1, 3, 2}, 100))
	assert.InDelta(t, 1.3, percentile([]float64{4, 1, 3, 2}, 10), 1e-9)
}

func TestScorer_TrainsPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "iforest.json")
	clock := func() time.Time { return monday }
	tx := models.TransactionRequest{UserID: "u1", Amount: 50}

	s := NewScorer(path, discardLogger(), WithClock(clock))
	first, err := s.Score(context.Background(), tx, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, 0.0)
	assert.LessOrEqual(t, first, 1.0)

	_, err = os.Stat(path)
	require.NoError(t, err, "model artifact is persisted")

	reloaded := NewScorer(path, discardLogger(), WithClock(clock))
	second, err := reloaded.Score(context.Background(), tx, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScorer_InitFailureIsRetried(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.Mkdir(path, 0o755))

	s := NewScorer(path, discardLogger(), WithTrainConfig(TrainConfig{Trees: 10, MaxSamples: 64, Contamination: 0.1, Seed: 42}))

	_, err := s.Score(context.Background(), models.TransactionRequest{Amount: 10}, nil)
	require.ErrorIs(t, err, custom_err.ErrModelUnavailable)

	require.NoError(t, os.Remove(path))

	risk, err := s.Score(context.Background(), models.TransactionRequest{Amount: 10}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, risk, 0.0)
	assert.LessOrEqual(t, risk, 1.0)
}

func TestScorer_HigherRiskForOutlier(t *testing.T) {
	forest, err := Train(SyntheticTrainingData(1000, FeatureCount, 42), DefaultTrainConfig())
	require.NoError(t, err)

	// midnight on Monday keeps hour and weekday features at zero
	midnight := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	s := NewScorer("unused", discardLogger(), WithForest(forest), WithClock(func() time.Time { return midnight }))
	profile := &models.UserProfile{AverageTransactionAmount: 1, TransactionCount: 0}

	low, err := s.Score(context.Background(), models.TransactionRequest{Amount: 1}, profile)
	require.NoError(t, err)
	high, err := s.Score(context.Background(), models.TransactionRequest{Amount: 50000}, profile)
	require.NoError(t, err)

	assert.Greater(t, high, low)
}

func TestScorer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScorer("unused", discardLogger()).Score(ctx, models.TransactionRequest{Amount: 1}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadForest_RejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"features":6,"sample_size":2,"trees":[[{"f":9,"l":1,"r":2}]]}`), 0o644))

	_, err := LoadForest(path)

	assert.Error(t, err)
}
