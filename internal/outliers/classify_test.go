package outliers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sector-view-api/internal/models"
)

func TestCalculateZScores(t *testing.T) {
	t.Run("price z uses sector statistics", func(t *testing.T) {
		stats := SectorStatistics{
			MetricPriceChange: {Mean: 2.0, StdDev: 1.0},
		}
		row := models.MetricRow{PriceChangePercent: 3}

		z := CalculateZScores(row, stats)

		assert.InDelta(t, 1.0, z.PriceZ, 1e-9)
		assert.Nil(t, z.PEZ)
		assert.Nil(t, z.PBZ)
		assert.Nil(t, z.VolumeZ)
	})

	t.Run("degenerate price variance collapses to zero", func(t *testing.T) {
		stats := SectorStatistics{
			MetricPriceChange: {Mean: 5.0, StdDev: 0.0005},
		}
		row := models.MetricRow{PriceChangePercent: 5.001}

		z := CalculateZScores(row, stats)

		assert.Equal(t, 0.0, z.PriceZ)
	})

	t.Run("optional z needs raw value, statistic, and usable std dev", func(t *testing.T) {
		stats := SectorStatistics{
			MetricPriceChange: {Mean: 0, StdDev: 1},
			MetricPERatio:     {Mean: 20, StdDev: 5},
			MetricPBRatio:     {Mean: 3, StdDev: 0.0001}, // degenerate
		}
		row := models.MetricRow{
			PriceChangePercent: 0,
			PERatio:            fptr(30),
			PBRatio:            fptr(4),
			Volume:             iptr(100), // no sector volume statistic
			AvgVolume10d:       iptr(50),
		}

		z := CalculateZScores(row, stats)

		if assert.NotNil(t, z.PEZ) {
			assert.InDelta(t, 2.0, *z.PEZ, 1e-9)
		}
		assert.Nil(t, z.PBZ, "degenerate std dev must not fabricate a z-score")
		assert.Nil(t, z.VolumeZ, "missing sector statistic must propagate")
	})

	t.Run("volume ratio recomputed per row", func(t *testing.T) {
		stats := SectorStatistics{
			MetricPriceChange: {Mean: 0, StdDev: 1},
			MetricVolumeRatio: {Mean: 1.0, StdDev: 0.5},
		}
		row := models.MetricRow{
			PriceChangePercent: 0,
			Volume:             iptr(300),
			AvgVolume10d:       iptr(100), // ratio 3
		}

		z := CalculateZScores(row, stats)

		if assert.NotNil(t, z.VolumeZ) {
			assert.InDelta(t, 4.0, *z.VolumeZ, 1e-9)
		}
	})
}

func TestCalculateCompositeScore(t *testing.T) {
	t.Run("all metrics at two sigma score exactly two", func(t *testing.T) {
		z := models.ZScores{
			PriceZ:  2,
			PEZ:     fptr(2),
			PBZ:     fptr(2),
			VolumeZ: fptr(2),
		}

		assert.InDelta(t, 2.0, CalculateCompositeScore(z), 1e-9)
	})

	t.Run("invariant under negating every z-score", func(t *testing.T) {
		z := models.ZScores{PriceZ: 1.3, PEZ: fptr(-2.1), PBZ: fptr(0.4), VolumeZ: fptr(3.7)}
		neg := models.ZScores{
			PriceZ:  -z.PriceZ,
			PEZ:     fptr(-*z.PEZ),
			PBZ:     fptr(-*z.PBZ),
			VolumeZ: fptr(-*z.VolumeZ),
		}

		assert.InDelta(t, CalculateCompositeScore(z), CalculateCompositeScore(neg), 1e-9)
	})

	t.Run("absent metrics renormalize instead of penalizing", func(t *testing.T) {
		// Only price present: score equals |price_z| regardless of weight.
		z := models.ZScores{PriceZ: 1.0}
		assert.InDelta(t, 1.0, CalculateCompositeScore(z), 1e-9)

		z.PriceZ = -2.5
		assert.InDelta(t, 2.5, CalculateCompositeScore(z), 1e-9)
	})
}

func TestClassifyOutlier(t *testing.T) {
	tests := []struct {
		name string
		z    models.ZScores
		want models.OutlierType
	}{
		{
			name: "low pe and pb is undervalued",
			z:    models.ZScores{PEZ: fptr(-1.5), PBZ: fptr(-1.2)},
			want: models.OutlierUndervalued,
		},
		{
			name: "high pe and pb is overvalued",
			z:    models.ZScores{PEZ: fptr(2.0), PBZ: fptr(2.0)},
			want: models.OutlierOvervalued,
		},
		{
			name: "high price and volume is momentum",
			z:    models.ZScores{PriceZ: 1.8, VolumeZ: fptr(2.2)},
			want: models.OutlierMomentum,
		},
		{
			name: "missing pb falls through to value trap",
			z:    models.ZScores{PriceZ: -2.0, PEZ: fptr(-2.0)},
			want: models.OutlierValueTrap,
		},
		{
			name: "missing pb falls through to growth premium",
			z:    models.ZScores{PriceZ: 2.0, PEZ: fptr(2.0)},
			want: models.OutlierGrowthPremium,
		},
		{
			name: "exact threshold does not trigger",
			z:    models.ZScores{PriceZ: 1.0, PEZ: fptr(1.0), PBZ: fptr(1.0), VolumeZ: fptr(1.0)},
			want: models.OutlierMixed,
		},
		{
			name: "nil z-scores never satisfy a rule",
			z:    models.ZScores{PriceZ: 3.0},
			want: models.OutlierMixed,
		},
		{
			name: "undervalued wins over value trap by rule order",
			z:    models.ZScores{PriceZ: -2.0, PEZ: fptr(-2.0), PBZ: fptr(-2.0)},
			want: models.OutlierUndervalued,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyOutlier(tt.z))
		})
	}
}

func TestClassifySignificance(t *testing.T) {
	tests := []struct {
		score float64
		want  models.SignificanceLevel
	}{
		{0.0, models.SignificanceModerate},
		{1.99, models.SignificanceModerate},
		{2.0, models.SignificanceStrong}, // lower boundary is closed
		{2.99, models.SignificanceStrong},
		{3.0, models.SignificanceExtreme},
		{10.0, models.SignificanceExtreme},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifySignificance(tt.score), "score %.2f", tt.score)
	}
}
