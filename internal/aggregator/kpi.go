package aggregator

import "math"

// KPIs are the dashboard headline numbers, rounded for display. The Summary
// they come from keeps full precision.
type KPIs struct {
	TotalRecommendations int `json:"total_recommendations"`
	AvgConfidencePercent int `json:"avg_confidence_percent"`
	AvgPrice             int `json:"avg_price"`
	Categories           int `json:"categories"`
}

func (s Summary) KPIs() KPIs {
	return KPIs{
		TotalRecommendations: s.TotalRecommendations,
		AvgConfidencePercent: int(math.Round(s.AvgConfidenceScore * 100)),
		AvgPrice:             int(math.Round(s.PriceRange.Avg)),
		Categories:           len(s.CategoryDistribution),
	}
}
