package outliers

import (
	"math"

	"sector-view-api/internal/models"
)

// Metric identifies one of the tracked per-stock metrics
type Metric string

const (
	MetricPriceChange Metric = "price_change_percent"
	MetricPERatio     Metric = "pe_ratio"
	MetricPBRatio     Metric = "pb_ratio"
	MetricVolumeRatio Metric = "volume_ratio"
)

// MetricStats holds the sample mean and sample standard deviation
// (Bessel's correction, n-1 denominator) for one metric
type MetricStats struct {
	Mean   float64
	StdDev float64
}

// SectorStatistics maps each metric to its sector-level statistics.
// MetricPriceChange is always present; the optional metrics appear only
// when at least two rows contributed a defined value.
type SectorStatistics map[Metric]MetricStats

// Get returns the statistics for a metric and whether they were computed.
func (s SectorStatistics) Get(m Metric) (MetricStats, bool) {
	st, ok := s[m]
	return st, ok
}

// minOptionalSamples is the smallest sample that supports a meaningful
// spread for metrics that may be absent per-stock.
const minOptionalSamples = 2

// CalculateStats computes per-metric sector statistics from a batch of rows.
// Pure function: the rows are only read.
func CalculateStats(rows []models.MetricRow) SectorStatistics {
	stats := make(SectorStatistics, 4)

	// Price change is required on every row, so it always gets statistics,
	// even for a single-row batch.
	prices := make([]float64, 0, len(rows))
	for _, r := range rows {
		prices = append(prices, r.PriceChangePercent)
	}
	mean, std := meanStdDev(prices)
	stats[MetricPriceChange] = MetricStats{Mean: mean, StdDev: std}

	var pes, pbs, ratios []float64
	for _, r := range rows {
		if r.PERatio != nil {
			pes = append(pes, *r.PERatio)
		}
		if r.PBRatio != nil {
			pbs = append(pbs, *r.PBRatio)
		}
		if ratio, ok := r.VolumeRatio(); ok {
			ratios = append(ratios, ratio)
		}
	}

	if len(pes) >= minOptionalSamples {
		mean, std := meanStdDev(pes)
		stats[MetricPERatio] = MetricStats{Mean: mean, StdDev: std}
	}
	if len(pbs) >= minOptionalSamples {
		mean, std := meanStdDev(pbs)
		stats[MetricPBRatio] = MetricStats{Mean: mean, StdDev: std}
	}
	if len(ratios) >= minOptionalSamples {
		mean, std := meanStdDev(ratios)
		stats[MetricVolumeRatio] = MetricStats{Mean: mean, StdDev: std}
	}

	return stats
}

// meanStdDev returns the sample mean and sample standard deviation.
// An empty sample yields (0, 0); a single value yields (value, 0).
func meanStdDev(values []float64) (float64, float64) {
	n := len(values)
	if n < 1 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	if n < 2 {
		return mean, 0
	}

	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(n-1)

	return mean, math.Sqrt(variance)
}
