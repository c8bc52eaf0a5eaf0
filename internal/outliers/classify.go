package outliers

import (
	"sector-view-api/internal/models"
)

// classificationRule pairs a predicate over z-scores with the label it
// assigns. Rules are evaluated in order and the first match wins, so a
// stock missing the z-scores of an earlier rule falls through to a later
// one instead of being forced into a partial match.
type classificationRule struct {
	matches func(z models.ZScores) bool
	label   models.OutlierType
}

// Thresholds are strict: exactly +/-1.0 does not trigger, and a nil
// z-score never satisfies a comparison.
func above(z *float64) bool { return z != nil && *z > 1.0 }
func below(z *float64) bool { return z != nil && *z < -1.0 }

var classificationRules = []classificationRule{
	{
		matches: func(z models.ZScores) bool { return below(z.PEZ) && below(z.PBZ) },
		label:   models.OutlierUndervalued,
	},
	{
		matches: func(z models.ZScores) bool { return above(z.PEZ) && above(z.PBZ) },
		label:   models.OutlierOvervalued,
	},
	{
		matches: func(z models.ZScores) bool { return z.PriceZ > 1.0 && above(z.VolumeZ) },
		label:   models.OutlierMomentum,
	},
	{
		matches: func(z models.ZScores) bool { return below(z.PEZ) && z.PriceZ < -1.0 },
		label:   models.OutlierValueTrap,
	},
	{
		matches: func(z models.ZScores) bool { return above(z.PEZ) && z.PriceZ > 1.0 },
		label:   models.OutlierGrowthPremium,
	},
}

// ClassifyOutlier assigns an outlier type from z-score directions using the
// priority-ordered rule chain. Stocks matching no rule are Mixed.
func ClassifyOutlier(z models.ZScores) models.OutlierType {
	for _, rule := range classificationRules {
		if rule.matches(z) {
			return rule.label
		}
	}
	return models.OutlierMixed
}

// ClassifySignificance buckets a composite score into a severity tier.
// Tier boundaries are closed on their lower edge: 2.0 is Strong, 3.0 Extreme.
func ClassifySignificance(score float64) models.SignificanceLevel {
	switch {
	case score >= 3.0:
		return models.SignificanceExtreme
	case score >= 2.0:
		return models.SignificanceStrong
	default:
		return models.SignificanceModerate
	}
}
