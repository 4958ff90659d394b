package anomaly

import (
	"math"
	"time"

	"gw-fraud-scoring/internal/models"
)

// FeatureCount число признаков, которые ожидает модель.
const FeatureCount = 6

// Feature order: amount, hour, weekday (0=Monday), amount deviation,
// location differs from home, normalized transaction frequency.
func Features(tx models.TransactionRequest, profile *models.UserProfile, now time.Time) []float64 {
	f := make([]float64, FeatureCount)
	f[0] = tx.Amount
	f[1] = float64(now.Hour())
	f[2] = float64((int(now.Weekday()) + 6) % 7)

	deviation := 1.0
	if profile != nil && profile.AverageTransactionAmount > 0 {
		avg := profile.AverageTransactionAmount
		deviation = math.Abs(tx.Amount-avg) / avg
	}
	f[3] = deviation

	if profile != nil && profile.HomeLocation != nil && *profile.HomeLocation != "" {
		if tx.Location == nil || *tx.Location != *profile.HomeLocation {
			f[4] = 1
		}
	}

	if profile != nil {
		f[5] = math.Min(float64(profile.TransactionCount)/1000, 1)
	}
	return f
}
