package yahoo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{
	"chart": {
		"result": [{
			"meta": {
				"regularMarketPrice": 150.0,
				"chartPreviousClose": 120.0,
				"regularMarketVolume": 1500000
			}
		}]
	}
}`

const summaryFixture = `{
	"quoteSummary": {
		"result": [{
			"defaultKeyStatistics": {
				"beta": {"raw": 1.2, "fmt": "1.20"},
				"trailingEps": {"raw": 6.1},
				"priceToBook": {"raw": 4.5}
			},
			"summaryDetail": {
				"trailingPE": {"raw": 24.6},
				"dividendYield": {"raw": 0.013},
				"fiftyTwoWeekHigh": {"raw": 199.5},
				"fiftyTwoWeekLow": {"raw": 101.2},
				"averageVolume10days": {"raw": 1200000},
				"marketCap": {"raw": 2500000000}
			},
			"summaryProfile": {"sector": "Technology"},
			"price": {"marketCap": {"raw": 2500000000}}
		}]
	}
}`

func TestBuildQuote(t *testing.T) {
	t.Run("merges chart and fundamentals", func(t *testing.T) {
		var chart chartResponse
		var summary quoteSummaryResponse
		require.NoError(t, json.Unmarshal([]byte(chartFixture), &chart))
		require.NoError(t, json.Unmarshal([]byte(summaryFixture), &summary))

		quote, err := buildQuote(7, "AAPL", &chart, &summary)

		require.NoError(t, err)
		assert.Equal(t, 7, quote.StockID)
		assert.Equal(t, "AAPL", quote.Symbol)
		assert.Equal(t, "150", quote.Price.String())
		assert.Equal(t, "30", quote.PriceChange.String())
		assert.InDelta(t, 25.0, quote.PriceChangePercent, 1e-9)

		require.NotNil(t, quote.Volume)
		assert.Equal(t, int64(1500000), *quote.Volume)
		require.NotNil(t, quote.AvgVolume10d)
		assert.Equal(t, int64(1200000), *quote.AvgVolume10d)
		require.NotNil(t, quote.MarketCap)
		assert.Equal(t, int64(2500000000), *quote.MarketCap)

		require.NotNil(t, quote.PERatio)
		assert.InDelta(t, 24.6, *quote.PERatio, 1e-9)
		require.NotNil(t, quote.PBRatio)
		assert.InDelta(t, 4.5, *quote.PBRatio, 1e-9)
		require.NotNil(t, quote.ProviderSector)
		assert.Equal(t, "Technology", *quote.ProviderSector)
	})

	t.Run("missing fundamentals leave optional fields nil", func(t *testing.T) {
		var chart chartResponse
		require.NoError(t, json.Unmarshal([]byte(chartFixture), &chart))
		summary := &quoteSummaryResponse{}

		quote, err := buildQuote(1, "XYZ", &chart, summary)

		require.NoError(t, err)
		assert.Nil(t, quote.PERatio)
		assert.Nil(t, quote.PBRatio)
		assert.Nil(t, quote.Beta)
		assert.Nil(t, quote.MarketCap)
		assert.Nil(t, quote.ProviderSector)
	})

	t.Run("missing chart data is an error", func(t *testing.T) {
		_, err := buildQuote(1, "XYZ", &chartResponse{}, &quoteSummaryResponse{})
		assert.Error(t, err)
	})
}

func TestPriceChange(t *testing.T) {
	t.Run("computes change and percent", func(t *testing.T) {
		change, percent := priceChange(110, 100)
		assert.InDelta(t, 10.0, change, 1e-9)
		assert.InDelta(t, 10.0, percent, 1e-9)
	})

	t.Run("zero previous close yields zero percent", func(t *testing.T) {
		change, percent := priceChange(110, 0)
		assert.InDelta(t, 110.0, change, 1e-9)
		assert.Equal(t, 0.0, percent)
	})
}
