// Package outliers implements the sector-relative outlier detection engine:
// per-metric sector statistics, z-score conversion, weighted composite
// scoring, and a deterministic classification policy. The engine does no
// I/O and keeps no state, so callers may process sectors concurrently.
package outliers

import (
	"sort"

	"sector-view-api/internal/models"
)

// minSectorSamples is the smallest batch that supports meaningful sector
// statistics. Smaller batches yield an empty result rather than an error.
const minSectorSamples = 3

// SectorBatch couples one sector's identity with its latest metric rows.
// Batches are processed in slice order.
type SectorBatch struct {
	Sector models.Sector
	Rows   []models.MetricRow
}

// DetectSectorOutliers flags stocks whose metrics deviate significantly from
// their sector peers. Rows must all belong to one sector and carry the latest
// snapshot per stock; the threshold applies to the unrounded composite score.
// Results come back sorted by composite score descending. The result is
// never nil, so an empty sector serializes as an empty JSON array.
func DetectSectorOutliers(rows []models.MetricRow, threshold float64) []models.OutlierStock {
	results := []models.OutlierStock{}
	if len(rows) < minSectorSamples {
		return results
	}

	stats := CalculateStats(rows)

	for _, row := range rows {
		z := CalculateZScores(row, stats)
		composite := CalculateCompositeScore(z)

		if composite >= threshold {
			results = append(results, models.OutlierStock{
				StockID:           row.StockID,
				Symbol:            row.Symbol,
				Name:              row.Name,
				ZScores:           z,
				CompositeScore:    roundScore(composite),
				OutlierType:       ClassifyOutlier(z),
				SignificanceLevel: ClassifySignificance(composite),
			})
		}
	}

	// Strongest outliers first. A NaN score compares false both ways and is
	// treated as equal, so the sort always terminates.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompositeScore > results[j].CompositeScore
	})

	return results
}

// DetectAllOutliers runs sector detection over every batch, preserving the
// caller-supplied ordering, and aggregates a per-sector summary.
func DetectAllOutliers(batches []SectorBatch, threshold float64) []models.SectorOutliers {
	results := make([]models.SectorOutliers, 0, len(batches))

	for _, batch := range batches {
		found := DetectSectorOutliers(batch.Rows, threshold)
		results = append(results, models.SectorOutliers{
			SectorID:     batch.Sector.ID,
			SectorName:   batch.Sector.Name,
			SectorSymbol: batch.Sector.Symbol,
			OutlierCount: len(found),
			Outliers:     found,
		})
	}

	return results
}
