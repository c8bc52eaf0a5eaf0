package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricRow is one stock's latest market data snapshot within a sector.
// It is the input unit of the outlier detection engine: the caller guarantees
// every row in a batch belongs to the same sector and is the most recent
// snapshot for its stock.
type MetricRow struct {
	StockID            int      `json:"stock_id"`
	Symbol             string   `json:"symbol"`
	Name               string   `json:"name"`
	SectorID           int      `json:"sector_id"`
	PriceChangePercent float64  `json:"price_change_percent"`
	PERatio            *float64 `json:"pe_ratio,omitempty"`
	PBRatio            *float64 `json:"pb_ratio,omitempty"`
	Volume             *int64   `json:"volume,omitempty"`
	AvgVolume10d       *int64   `json:"avg_volume_10d,omitempty"`
}

// VolumeRatio returns volume / avg_volume_10d when both are present and the
// average is positive. The second return reports whether the ratio is defined.
func (r *MetricRow) VolumeRatio() (float64, bool) {
	if r.Volume == nil || r.AvgVolume10d == nil || *r.AvgVolume10d <= 0 {
		return 0, false
	}
	return float64(*r.Volume) / float64(*r.AvgVolume10d), true
}

// StockQuote represents a full quote for one stock as returned by the
// market data provider. Monetary values use decimal; ratios and percentages
// stay float64 since they feed the statistics engine.
type StockQuote struct {
	StockID            int             `json:"stock_id"`
	Symbol             string          `json:"symbol"`
	Price              decimal.Decimal `json:"price"`
	PriceChange        decimal.Decimal `json:"price_change"`
	PriceChangePercent float64         `json:"price_change_percent"`
	Volume             *int64          `json:"volume,omitempty"`
	AvgVolume10d       *int64          `json:"avg_volume_10d,omitempty"`
	MarketCap          *int64          `json:"market_cap,omitempty"`
	PERatio            *float64        `json:"pe_ratio,omitempty"`
	PBRatio            *float64        `json:"pb_ratio,omitempty"`
	EPS                *float64        `json:"eps,omitempty"`
	DividendYield      *float64        `json:"dividend_yield,omitempty"`
	Beta               *float64        `json:"beta,omitempty"`
	Week52High         *float64        `json:"week_52_high,omitempty"`
	Week52Low          *float64        `json:"week_52_low,omitempty"`

	// Sector label as reported by the provider, used to classify
	// stocks that have no sector assigned yet
	ProviderSector *string `json:"provider_sector,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
