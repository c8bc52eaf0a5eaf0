package models

// OutlierType labels why a stock is anomalous relative to its sector peers
type OutlierType string

const (
	OutlierUndervalued   OutlierType = "undervalued"
	OutlierOvervalued    OutlierType = "overvalued"
	OutlierMomentum      OutlierType = "momentum"
	OutlierValueTrap     OutlierType = "value_trap"
	OutlierGrowthPremium OutlierType = "growth_premium"
	OutlierMixed         OutlierType = "mixed"
)

// SignificanceLevel buckets the composite score into coarse severity tiers
type SignificanceLevel string

const (
	SignificanceModerate SignificanceLevel = "moderate"
	SignificanceStrong   SignificanceLevel = "strong"
	SignificanceExtreme  SignificanceLevel = "extreme"
)

// ZScores holds a stock's sector-relative z-scores. PriceZ is always defined;
// the optional metrics are nil when the raw value, the sector statistic, or a
// usable standard deviation is missing.
type ZScores struct {
	PriceZ  float64  `json:"price_z"`
	PEZ     *float64 `json:"pe_z,omitempty"`
	PBZ     *float64 `json:"pb_z,omitempty"`
	VolumeZ *float64 `json:"volume_z,omitempty"`
}

// OutlierStock is one flagged stock. CompositeScore is rounded to two
// decimal places for presentation; classification happens on the raw score.
type OutlierStock struct {
	StockID           int               `json:"stock_id"`
	Symbol            string            `json:"symbol"`
	Name              string            `json:"name"`
	ZScores           ZScores           `json:"z_scores"`
	CompositeScore    float64           `json:"composite_score"`
	OutlierType       OutlierType       `json:"outlier_type"`
	SignificanceLevel SignificanceLevel `json:"significance_level"`
}

// SectorOutliers aggregates one sector's detection results
type SectorOutliers struct {
	SectorID     int            `json:"sector_id"`
	SectorName   string         `json:"sector_name"`
	SectorSymbol string         `json:"sector_symbol"`
	OutlierCount int            `json:"outlier_count"`
	Outliers     []OutlierStock `json:"outliers"`
}
