package outliers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sector-view-api/internal/models"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int64) *int64     { return &v }

func TestMeanStdDev(t *testing.T) {
	t.Run("empty sample yields zero mean and zero std dev", func(t *testing.T) {
		mean, std := meanStdDev(nil)
		assert.Equal(t, 0.0, mean)
		assert.Equal(t, 0.0, std)
	})

	t.Run("single sample yields zero std dev", func(t *testing.T) {
		mean, std := meanStdDev([]float64{42.5})
		assert.Equal(t, 42.5, mean)
		assert.Equal(t, 0.0, std)
	})

	t.Run("uses sample standard deviation", func(t *testing.T) {
		// [1,2,3]: mean 2, variance (1+0+1)/(3-1) = 1
		mean, std := meanStdDev([]float64{1, 2, 3})
		assert.InDelta(t, 2.0, mean, 1e-9)
		assert.InDelta(t, 1.0, std, 1e-9)
	})

	t.Run("identical values yield zero std dev", func(t *testing.T) {
		mean, std := meanStdDev([]float64{7, 7, 7, 7})
		assert.InDelta(t, 7.0, mean, 1e-9)
		assert.Equal(t, 0.0, std)
	})
}

func TestCalculateStats(t *testing.T) {
	t.Run("price statistics always present", func(t *testing.T) {
		rows := []models.MetricRow{
			{PriceChangePercent: 1},
			{PriceChangePercent: 2},
			{PriceChangePercent: 3},
		}

		stats := CalculateStats(rows)

		ps, ok := stats.Get(MetricPriceChange)
		assert.True(t, ok)
		assert.InDelta(t, 2.0, ps.Mean, 1e-9)
		assert.InDelta(t, 1.0, ps.StdDev, 1e-9)
	})

	t.Run("price statistics include zero and negative changes", func(t *testing.T) {
		rows := []models.MetricRow{
			{PriceChangePercent: -2},
			{PriceChangePercent: 0},
			{PriceChangePercent: 2},
		}

		stats := CalculateStats(rows)

		ps, _ := stats.Get(MetricPriceChange)
		assert.InDelta(t, 0.0, ps.Mean, 1e-9)
		assert.InDelta(t, 2.0, ps.StdDev, 1e-9)
	})

	t.Run("optional metrics absent with fewer than two samples", func(t *testing.T) {
		rows := []models.MetricRow{
			{PriceChangePercent: 1, PERatio: fptr(15)},
			{PriceChangePercent: 2},
			{PriceChangePercent: 3},
		}

		stats := CalculateStats(rows)

		_, ok := stats.Get(MetricPERatio)
		assert.False(t, ok, "one P/E sample cannot support a spread")
		_, ok = stats.Get(MetricPBRatio)
		assert.False(t, ok)
		_, ok = stats.Get(MetricVolumeRatio)
		assert.False(t, ok)
	})

	t.Run("optional metrics computed over present values only", func(t *testing.T) {
		rows := []models.MetricRow{
			{PriceChangePercent: 1, PERatio: fptr(10)},
			{PriceChangePercent: 2, PERatio: fptr(20)},
			{PriceChangePercent: 3}, // no P/E, skipped
		}

		stats := CalculateStats(rows)

		pe, ok := stats.Get(MetricPERatio)
		assert.True(t, ok)
		assert.InDelta(t, 15.0, pe.Mean, 1e-9)
	})

	t.Run("volume ratio requires both volumes and positive average", func(t *testing.T) {
		rows := []models.MetricRow{
			{PriceChangePercent: 1, Volume: iptr(200), AvgVolume10d: iptr(100)}, // ratio 2
			{PriceChangePercent: 2, Volume: iptr(100), AvgVolume10d: iptr(100)}, // ratio 1
			{PriceChangePercent: 3, Volume: iptr(500), AvgVolume10d: iptr(0)},   // undefined
			{PriceChangePercent: 4, Volume: iptr(500)},                          // undefined
		}

		stats := CalculateStats(rows)

		vr, ok := stats.Get(MetricVolumeRatio)
		assert.True(t, ok)
		assert.InDelta(t, 1.5, vr.Mean, 1e-9)
	})
}
