package outliers

import (
	"math"

	"sector-view-api/internal/models"
)

// Metric weights for the composite score. The weights of absent metrics
// drop out of the denominator, so a stock is scored only on the metrics
// it actually has.
const (
	weightPrice  = 0.3
	weightPE     = 0.3
	weightPB     = 0.2
	weightVolume = 0.2
)

// CalculateCompositeScore combines the available z-scores into a single
// anomaly score: the weighted root-mean-square over the defined metrics.
// Squaring discards the sign, so high and low deviations score alike.
func CalculateCompositeScore(z models.ZScores) float64 {
	weightedSum := weightPrice * z.PriceZ * z.PriceZ
	totalWeight := weightPrice

	if z.PEZ != nil {
		weightedSum += weightPE * *z.PEZ * *z.PEZ
		totalWeight += weightPE
	}
	if z.PBZ != nil {
		weightedSum += weightPB * *z.PBZ * *z.PBZ
		totalWeight += weightPB
	}
	if z.VolumeZ != nil {
		weightedSum += weightVolume * *z.VolumeZ * *z.VolumeZ
		totalWeight += weightVolume
	}

	if totalWeight <= 0 {
		return 0
	}
	return math.Sqrt(weightedSum / totalWeight)
}

// roundScore rounds a composite score to two decimal places for
// presentation and storage. Thresholding and significance classification
// use the unrounded score.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
