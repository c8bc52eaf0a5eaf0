package outliers

import (
	"sector-view-api/internal/models"
)

// minStdDev is the smallest standard deviation considered usable for a
// z-score. At or below it the division would blow up on near-identical
// samples, so the price z-score collapses to 0 and optional z-scores to nil.
const minStdDev = 0.001

// CalculateZScores converts one stock's raw metrics into sector-relative
// z-scores. Optional metrics require the raw value, the sector statistic,
// and a usable standard deviation; missing any of the three yields nil,
// never a fabricated zero.
func CalculateZScores(row models.MetricRow, stats SectorStatistics) models.ZScores {
	z := models.ZScores{}

	if ps, ok := stats.Get(MetricPriceChange); ok && ps.StdDev > minStdDev {
		z.PriceZ = (row.PriceChangePercent - ps.Mean) / ps.StdDev
	}

	if row.PERatio != nil {
		if st, ok := stats.Get(MetricPERatio); ok && st.StdDev > minStdDev {
			v := (*row.PERatio - st.Mean) / st.StdDev
			z.PEZ = &v
		}
	}

	if row.PBRatio != nil {
		if st, ok := stats.Get(MetricPBRatio); ok && st.StdDev > minStdDev {
			v := (*row.PBRatio - st.Mean) / st.StdDev
			z.PBZ = &v
		}
	}

	// Recomputed per row rather than cached from the aggregation pass
	if ratio, ok := row.VolumeRatio(); ok {
		if st, ok := stats.Get(MetricVolumeRatio); ok && st.StdDev > minStdDev {
			v := (ratio - st.Mean) / st.StdDev
			z.VolumeZ = &v
		}
	}

	return z
}
