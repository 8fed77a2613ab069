// Package insights describes a shopper from their profile and current batch.
package insights

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"product-insights-go/internal/aggregator"
	"product-insights-go/internal/types"
)

type Generator interface {
	Name() string
	Generate(ctx context.Context, profile types.UserProfile, recs []types.Recommendation, summary aggregator.Summary) (types.UserInsights, error)
}

// Default is reported when there is nothing to derive insights from.
func Default() types.UserInsights {
	return types.UserInsights{
		Patterns:               "Tech-savvy with fitness focus",
		PriceSensitivity:       "Medium",
		CategoryPreferences:    "Electronics, Health",
		CrossSellOpportunities: "Smart home devices, fitness accessories",
	}
}

var descriptors = map[string]string{
	"technology":  "Tech-savvy",
	"fitness":     "Active",
	"health":      "Health-minded",
	"fashion":     "Style-conscious",
	"beauty":      "Beauty-conscious",
	"books":       "Avid reader",
	"travel":      "Frequent traveler",
	"cooking":     "Home cook",
	"photography": "Visual creator",
	"gaming":      "Gamer",
}

var crossSell = map[string]string{
	"electronics": "Smart home devices",
	"health":      "fitness accessories",
	"fashion":     "matching accessories",
	"books":       "e-readers",
	"home":        "home decor",
}

// Static derives insights with fixed rules: interests drive the pattern,
// average price drives sensitivity, categories drive preferences and
// cross-sell suggestions.
type Static struct{}

var _ Generator = Static{}

func (Static) Name() string { return "static" }

func (Static) Generate(_ context.Context, p types.UserProfile, _ []types.Recommendation, s aggregator.Summary) (types.UserInsights, error) {
	out := Default()
	if pat := pattern(p); pat != "" {
		out.Patterns = pat
	}
	if s.TotalRecommendations == 0 {
		return out, nil
	}

	switch avg := s.PriceRange.Avg; {
	case avg < 50:
		out.PriceSensitivity = "High"
	case avg <= 200:
		out.PriceSensitivity = "Medium"
	default:
		out.PriceSensitivity = "Low"
	}

	cats := make([]string, 0, len(s.CategoryDistribution))
	sells := make([]string, 0, len(s.CategoryDistribution))
	for _, c := range s.CategoryDistribution {
		if c.Category == "" {
			continue
		}
		cats = append(cats, c.Category)
		if sell, ok := crossSell[strings.ToLower(c.Category)]; ok {
			sells = append(sells, sell)
		} else {
			sells = append(sells, strings.ToLower(c.Category)+" accessories")
		}
	}
	if len(cats) > 0 {
		out.CategoryPreferences = strings.Join(cats, ", ")
		out.CrossSellOpportunities = strings.Join(sells, ", ")
	}
	return out, nil
}

func pattern(p types.UserProfile) string {
	lead := p.Interest(0)
	if lead == "" {
		return ""
	}
	d, ok := descriptors[strings.ToLower(lead)]
	if !ok {
		r, size := utf8.DecodeRuneInString(lead)
		d = string(unicode.ToUpper(r)) + lead[size:] + " enthusiast"
	}
	if second := p.Interest(1); second != "" {
		return fmt.Sprintf("%s with %s focus", d, strings.ToLower(second))
	}
	return d
}
