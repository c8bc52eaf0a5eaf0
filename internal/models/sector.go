package models

import (
	"github.com/shopspring/decimal"
)

// Universe identifies which stock universe a query or refresh operates on.
const (
	UniverseSP500   = "sp500"
	UniverseRussell = "russell2000"
)

// Sector represents a GICS industry sector
type Sector struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Stock represents a listed company tracked by the service
type Stock struct {
	ID       int    `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	SectorID *int   `json:"sector_id,omitempty"`
}

// SectorSummary represents aggregated performance for one sector,
// computed from the latest market data snapshot of each constituent
type SectorSummary struct {
	SectorID         int             `json:"sector_id"`
	Name             string          `json:"name"`
	Symbol           string          `json:"symbol"`
	AvgChangePercent float64         `json:"avg_change_percent"`
	AvgPERatio       *float64        `json:"avg_pe_ratio,omitempty"`
	TotalMarketCap   decimal.Decimal `json:"total_market_cap"`
	StockCount       int             `json:"stock_count"`
	AvgBeta          *float64        `json:"avg_beta,omitempty"`
}

// DiscoveryResult summarizes a universe membership sync
type DiscoveryResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

// RefreshResult is returned by a full market data refresh
type RefreshResult struct {
	Sectors   []SectorSummary  `json:"sectors"`
	Discovery *DiscoveryResult `json:"discovery,omitempty"`
}
