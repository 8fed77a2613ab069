package insights

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"product-insights-go/internal/aggregator"
	"product-insights-go/internal/llm"
	"product-insights-go/internal/types"
)

const (
	insightsSystem      = "You are a data analyst specializing in user behavior and shopping patterns."
	insightsMaxTokens   = 500
	insightsTemperature = 0.5
)

// Remote asks the completer and falls back to another generator on failure.
type Remote struct {
	completer llm.Completer
	fallback  Generator
	log       *logrus.Entry
}

var _ Generator = (*Remote)(nil)

func NewRemote(completer llm.Completer, fallback Generator, log *logrus.Entry) *Remote {
	return &Remote{completer: completer, fallback: fallback, log: log}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Generate(ctx context.Context, p types.UserProfile, recs []types.Recommendation, s aggregator.Summary) (types.UserInsights, error) {
	req := llm.UserPrompt(insightsSystem, Prompt(p, recs))
	req.MaxTokens = insightsMaxTokens
	req.Temperature = insightsTemperature

	text, err := r.completer.Complete(ctx, req)
	if err == nil {
		var out types.UserInsights
		if out, err = Parse(text); err == nil {
			return out, nil
		}
	}
	if ctx.Err() != nil {
		return types.UserInsights{}, ctx.Err()
	}
	r.log.WithFields(logrus.Fields{
		"user_id": p.UserID,
		"error":   err.Error(),
	}).Warn("remote insights failed, using static rules")
	return r.fallback.Generate(ctx, p, recs, s)
}

func Prompt(p types.UserProfile, recs []types.Recommendation) string {
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		names = append(names, rec.ProductName)
	}
	return fmt.Sprintf(`Analyze this user's profile and recommendations to generate insights:

User: %dy, %s, interests: %s
Recommendations: %s

Generate insights about:
1. User's shopping patterns
2. Price sensitivity
3. Category preferences
4. Potential cross-selling opportunities

Return as JSON with fields: patterns, price_sensitivity, category_preferences, cross_sell_opportunities`,
		p.Age, p.Gender, strings.Join(p.Preferences, ", "), strings.Join(names, ", "))
}

// text accepts a JSON string, number, or list of strings; models are not
// consistent about which one they send.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = text(strings.Join(list, ", "))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*t = text(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	return fmt.Errorf("insights: unsupported value %s", string(b))
}

func Parse(s string) (types.UserInsights, error) {
	raw := llm.ExtractJSON(s)
	if raw == "" || !strings.HasPrefix(raw, "{") {
		return types.UserInsights{}, errors.New("no JSON object in response")
	}
	var wire struct {
		Patterns               text `json:"patterns"`
		PriceSensitivity       text `json:"price_sensitivity"`
		CategoryPreferences    text `json:"category_preferences"`
		CrossSellOpportunities text `json:"cross_sell_opportunities"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return types.UserInsights{}, fmt.Errorf("decode insights: %w", err)
	}
	out := types.UserInsights{
		Patterns:               string(wire.Patterns),
		PriceSensitivity:       string(wire.PriceSensitivity),
		CategoryPreferences:    string(wire.CategoryPreferences),
		CrossSellOpportunities: string(wire.CrossSellOpportunities),
	}
	if out == (types.UserInsights{}) {
		return out, errors.New("insights response had no known fields")
	}
	return out, nil
}
