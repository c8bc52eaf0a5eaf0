package yahoo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sector-view-api/internal/models"
	"sector-view-api/internal/types"
)

// Chart API (v8) response shapes

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

type chartMeta struct {
	RegularMarketPrice  *float64 `json:"regularMarketPrice"`
	ChartPreviousClose  *float64 `json:"chartPreviousClose"`
	RegularMarketVolume *int64   `json:"regularMarketVolume"`
}

// quoteSummary API (v10) response shapes. Yahoo wraps most numbers in
// {"raw": 123.45, "fmt": "123.45"}.

type yahooValue struct {
	Raw *float64 `json:"raw"`
}

func (v *yahooValue) float() *float64 {
	if v == nil {
		return nil
	}
	return v.Raw
}

func (v *yahooValue) int64() *int64 {
	if v == nil || v.Raw == nil {
		return nil
	}
	n := int64(*v.Raw)
	return &n
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryData `json:"result"`
	} `json:"quoteSummary"`
}

type quoteSummaryData struct {
	DefaultKeyStatistics *struct {
		Beta        *yahooValue `json:"beta"`
		TrailingEPS *yahooValue `json:"trailingEps"`
		PriceToBook *yahooValue `json:"priceToBook"`
	} `json:"defaultKeyStatistics"`
	SummaryDetail *struct {
		TrailingPE          *yahooValue `json:"trailingPE"`
		DividendYield       *yahooValue `json:"dividendYield"`
		FiftyTwoWeekHigh    *yahooValue `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow     *yahooValue `json:"fiftyTwoWeekLow"`
		AverageVolume10days *yahooValue `json:"averageVolume10days"`
		MarketCap           *yahooValue `json:"marketCap"`
	} `json:"summaryDetail"`
	SummaryProfile *struct {
		Sector *string `json:"sector"`
	} `json:"summaryProfile"`
	Price *struct {
		MarketCap *yahooValue `json:"marketCap"`
	} `json:"price"`
}

// buildQuote merges the chart and quoteSummary payloads into one StockQuote
func buildQuote(stockID int, symbol string, chart *chartResponse, summary *quoteSummaryResponse) (*models.StockQuote, error) {
	if len(chart.Chart.Result) == 0 {
		return nil, types.NewProviderError(providerName, types.ErrorCodeNoData, fmt.Sprintf("no chart data for %s", symbol), false)
	}
	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil {
		return nil, types.NewProviderError(providerName, types.ErrorCodeNoData, fmt.Sprintf("no market price for %s", symbol), false)
	}

	price := *meta.RegularMarketPrice
	prevClose := 0.0
	if meta.ChartPreviousClose != nil {
		prevClose = *meta.ChartPreviousClose
	}
	change, changePercent := priceChange(price, prevClose)

	quote := &models.StockQuote{
		StockID:            stockID,
		Symbol:             symbol,
		Price:              decimal.NewFromFloat(price),
		PriceChange:        decimal.NewFromFloat(change),
		PriceChangePercent: changePercent,
		Volume:             meta.RegularMarketVolume,
		Timestamp:          time.Now(),
	}

	if len(summary.QuoteSummary.Result) > 0 {
		data := summary.QuoteSummary.Result[0]

		if ks := data.DefaultKeyStatistics; ks != nil {
			quote.Beta = ks.Beta.float()
			quote.EPS = ks.TrailingEPS.float()
			quote.PBRatio = ks.PriceToBook.float()
		}
		if sd := data.SummaryDetail; sd != nil {
			quote.PERatio = sd.TrailingPE.float()
			quote.DividendYield = sd.DividendYield.float()
			quote.Week52High = sd.FiftyTwoWeekHigh.float()
			quote.Week52Low = sd.FiftyTwoWeekLow.float()
			quote.AvgVolume10d = sd.AverageVolume10days.int64()
			quote.MarketCap = sd.MarketCap.int64()
		}
		// summaryDetail omits market cap for some symbols; the price module
		// carries it as a fallback
		if quote.MarketCap == nil && data.Price != nil {
			quote.MarketCap = data.Price.MarketCap.int64()
		}
		if sp := data.SummaryProfile; sp != nil {
			quote.ProviderSector = sp.Sector
		}
	}

	return quote, nil
}

// priceChange computes absolute and percent change from the previous close
func priceChange(price, prevClose float64) (float64, float64) {
	change := price - prevClose
	if prevClose == 0 {
		return change, 0
	}
	return change, (change / prevClose) * 100
}
