package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"product-insights-go/internal/llm"
	"product-insights-go/internal/metrics"
	"product-insights-go/internal/types"
	"product-insights-go/internal/validation"
)

const recommendSystem = "You are an AI recommendation system expert. Generate personalized product recommendations based on user profiles."

// Remote asks the completer for a batch and falls back to the fixture when the
// call fails or its output does not parse into valid records.
type Remote struct {
	completer llm.Completer
	fallback  Source
	log       *logrus.Entry
}

var _ Source = (*Remote)(nil)

func NewRemote(completer llm.Completer, fallback Source, log *logrus.Entry) *Remote {
	return &Remote{completer: completer, fallback: fallback, log: log}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Recommend(ctx context.Context, profile types.UserProfile) ([]types.Recommendation, error) {
	log := r.log.WithField("user_id", profile.UserID)

	text, err := r.completer.Complete(ctx, llm.UserPrompt(recommendSystem, Prompt(profile)))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithField("error", err.Error()).Warn("remote recommendations failed, using fixture")
		return r.fallBack(ctx, profile, "remote_error")
	}

	recs, err := Parse(text)
	if err != nil {
		log.WithField("error", err.Error()).Warn("remote recommendations unparseable, using fixture")
		return r.fallBack(ctx, profile, "parse_error")
	}
	log.WithField("count", len(recs)).Info("remote recommendations received")
	return recs, nil
}

func (r *Remote) fallBack(ctx context.Context, profile types.UserProfile, reason string) ([]types.Recommendation, error) {
	metrics.RecommendationFallbacks.WithLabelValues(reason).Inc()
	return r.fallback.Recommend(ctx, profile)
}

// Prompt formats a profile into the recommendation request.
func Prompt(p types.UserProfile) string {
	history := "None"
	if len(p.PurchaseHistory) > 0 {
		history = strings.Join(p.PurchaseHistory, ", ")
	}
	return fmt.Sprintf(`Generate 6 personalized product recommendations for a user with the following profile:
- Age: %d
- Gender: %s
- Interests: %s
- Purchase History: %s

For each recommendation, provide:
1. Product name (realistic)
2. Confidence score (0-1)
3. Personalized explanation
4. Marketing copy tailored to this user
5. Realistic price
6. Product category

Return as JSON array with fields: product_id, product_name, score, explanation, marketing_copy, price, category`,
		p.Age, p.Gender, strings.Join(p.Preferences, ", "), history)
}

// Parse accepts a JSON array of records or an object wrapping one under
// "recommendations", possibly fenced or surrounded by prose.
func Parse(text string) ([]types.Recommendation, error) {
	raw := llm.ExtractJSON(text)
	if raw == "" {
		return nil, errors.New("no JSON found in response")
	}

	var recs []types.Recommendation
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	} else {
		var wrapped struct {
			Recommendations []types.Recommendation `json:"recommendations"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		recs = wrapped.Recommendations
	}

	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	if err := validation.Recommendations(recs); err != nil {
		return nil, err
	}
	return recs, nil
}
