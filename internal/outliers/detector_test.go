package outliers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"sector-view-api/internal/models"
)

func priceRows(changes ...float64) []models.MetricRow {
	rows := make([]models.MetricRow, len(changes))
	for i, c := range changes {
		rows[i] = models.MetricRow{
			StockID:            i + 1,
			Symbol:             string(rune('A' + i)),
			PriceChangePercent: c,
		}
	}
	return rows
}

func TestDetectSectorOutliers(t *testing.T) {
	t.Run("fewer than three rows yields empty result", func(t *testing.T) {
		rows := priceRows(1, 100)

		assert.Empty(t, DetectSectorOutliers(rows, 0.1), "two stocks cannot support sector statistics")
		assert.Empty(t, DetectSectorOutliers(nil, 0.1))
	})

	t.Run("empty result is a slice, not nil", func(t *testing.T) {
		assert.NotNil(t, DetectSectorOutliers(nil, 0.1))
		assert.NotNil(t, DetectSectorOutliers(priceRows(1, 100), 0.1))
		assert.NotNil(t, DetectSectorOutliers(priceRows(1, 2, 3), 99))
	})

	t.Run("price-only batch below threshold flags nothing", func(t *testing.T) {
		// [1,2,3]: mean 2, std 1. The strongest stock has price_z 1.0 and a
		// composite of sqrt(0.3*1/0.3) = 1.0, below a 1.5 threshold.
		rows := priceRows(1, 2, 3)

		assert.Empty(t, DetectSectorOutliers(rows, 1.5))
	})

	t.Run("flags the deviating stock with rounded score", func(t *testing.T) {
		// [0, 0.5, -0.5, 1, 10]: mean 2.2, sample std ~4.396.
		// Only 10 deviates enough: z ~1.774, composite ~1.774.
		rows := priceRows(0, 0.5, -0.5, 1, 10)

		results := DetectSectorOutliers(rows, 1.5)

		if assert.Len(t, results, 1) {
			assert.Equal(t, 5, results[0].StockID)
			assert.Equal(t, 1.77, results[0].CompositeScore)
			assert.Equal(t, models.OutlierMixed, results[0].OutlierType)
			assert.Equal(t, models.SignificanceModerate, results[0].SignificanceLevel)
			assert.InDelta(t, 1.774, results[0].ZScores.PriceZ, 0.01)
		}
	})

	t.Run("results sorted by composite score descending", func(t *testing.T) {
		rows := priceRows(1, 2, 3, 10, 20)

		results := DetectSectorOutliers(rows, 0.6)

		assert.True(t, len(results) >= 2)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].CompositeScore, results[i].CompositeScore)
		}
	})

	t.Run("identical moves never divide by zero", func(t *testing.T) {
		rows := priceRows(4, 4, 4, 4)

		results := DetectSectorOutliers(rows, 0.5)

		assert.Empty(t, results, "zero variance means zero z-scores, never Inf or NaN")
	})

	t.Run("detection is idempotent", func(t *testing.T) {
		rows := []models.MetricRow{
			{StockID: 1, PriceChangePercent: -8, PERatio: fptr(5), PBRatio: fptr(0.5)},
			{StockID: 2, PriceChangePercent: 1, PERatio: fptr(22), PBRatio: fptr(3)},
			{StockID: 3, PriceChangePercent: 2, PERatio: fptr(25), PBRatio: fptr(3.5)},
			{StockID: 4, PriceChangePercent: 1.5, PERatio: fptr(24), PBRatio: fptr(3.2)},
		}

		first := DetectSectorOutliers(rows, 1.0)
		second := DetectSectorOutliers(rows, 1.0)

		assert.Equal(t, first, second)
	})

	t.Run("mixed metric availability classifies through rule chain", func(t *testing.T) {
		// Stock 1 crashes on depressed P/E with no P/B data anywhere: rule 1
		// cannot fire, so it must land on value trap.
		rows := []models.MetricRow{
			{StockID: 1, Symbol: "VTR", PriceChangePercent: -9, PERatio: fptr(4)},
			{StockID: 2, Symbol: "AAA", PriceChangePercent: 1, PERatio: fptr(20)},
			{StockID: 3, Symbol: "BBB", PriceChangePercent: 1.5, PERatio: fptr(22)},
			{StockID: 4, Symbol: "CCC", PriceChangePercent: 0.5, PERatio: fptr(21)},
		}

		results := DetectSectorOutliers(rows, 1.2)

		if assert.Len(t, results, 1) {
			assert.Equal(t, "VTR", results[0].Symbol)
			assert.Equal(t, models.OutlierValueTrap, results[0].OutlierType)
			assert.Nil(t, results[0].ZScores.PBZ)
		}
	})
}

func TestDetectAllOutliers(t *testing.T) {
	t.Run("preserves batch order and aggregates counts", func(t *testing.T) {
		batches := []SectorBatch{
			{
				Sector: models.Sector{ID: 3, Name: "Energy", Symbol: "XLE"},
				Rows:   priceRows(0, 0.5, -0.5, 1, 10),
			},
			{
				Sector: models.Sector{ID: 7, Name: "Utilities", Symbol: "XLU"},
				Rows:   priceRows(1, 2), // too small
			},
		}

		results := DetectAllOutliers(batches, 1.5)

		if assert.Len(t, results, 2) {
			assert.Equal(t, "XLE", results[0].SectorSymbol)
			assert.Equal(t, 1, results[0].OutlierCount)
			assert.Len(t, results[0].Outliers, 1)

			assert.Equal(t, "XLU", results[1].SectorSymbol)
			assert.Equal(t, 0, results[1].OutlierCount)
			assert.Empty(t, results[1].Outliers)
		}
	})

	t.Run("sector without outliers serializes an empty array", func(t *testing.T) {
		batches := []SectorBatch{
			{
				Sector: models.Sector{ID: 7, Name: "Utilities", Symbol: "XLU"},
				Rows:   priceRows(1, 2),
			},
		}

		data, err := json.Marshal(DetectAllOutliers(batches, 1.5))
		assert.NoError(t, err)
		assert.Contains(t, string(data), `"outliers":[]`)
		assert.NotContains(t, string(data), "null")
	})
}
