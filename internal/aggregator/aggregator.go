package aggregator

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/goccy/go-json"

	"product-insights-go/internal/types"
)

// ErrEmptyInput is returned for an empty batch. Averages over zero records are
// undefined, so no zeroed summary is produced.
var ErrEmptyInput = errors.New("aggregator: empty recommendation set")

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryDistribution keeps categories in first-seen order. It encodes as a
// JSON object whose keys follow that order.
type CategoryDistribution []CategoryCount

func (d CategoryDistribution) Count(category string) int {
	for _, c := range d {
		if c.Category == category {
			return c.Count
		}
	}
	return 0
}

func (d CategoryDistribution) Map() map[string]int {
	m := make(map[string]int, len(d))
	for _, c := range d {
		m[c.Category] = c.Count
	}
	return m
}

func (d CategoryDistribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(strconv.AppendInt(buf.AvailableBuffer(), int64(c.Count), 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Summary is derived from a batch and never mutated after Aggregate returns.
type Summary struct {
	TotalRecommendations int                  `json:"total_recommendations"`
	AvgConfidenceScore   float64              `json:"avg_confidence_score"`
	CategoryDistribution CategoryDistribution `json:"category_distribution"`
	PriceRange           PriceRange           `json:"price_range"`
}

// Aggregate summarizes recs in one pass. Categories are counted verbatim, with
// no trimming or case folding; nothing is filtered, sorted or deduplicated.
func Aggregate(recs []types.Recommendation) (Summary, error) {
	if len(recs) == 0 {
		return Summary{}, ErrEmptyInput
	}
	var (
		scoreSum float64
		priceSum float64
		minPrice = recs[0].Price
		maxPrice = recs[0].Price
		index    = map[string]int{}
		dist     CategoryDistribution
	)
	for _, r := range recs {
		scoreSum += r.Score
		priceSum += r.Price
		if r.Price < minPrice {
			minPrice = r.Price
		}
		if r.Price > maxPrice {
			maxPrice = r.Price
		}
		if i, ok := index[r.Category]; ok {
			dist[i].Count++
			continue
		}
		index[r.Category] = len(dist)
		dist = append(dist, CategoryCount{Category: r.Category, Count: 1})
	}
	n := float64(len(recs))
	return Summary{
		TotalRecommendations: len(recs),
		AvgConfidenceScore:   scoreSum / n,
		CategoryDistribution: dist,
		PriceRange: PriceRange{
			Min: minPrice,
			Max: maxPrice,
			Avg: priceSum / n,
		},
	}, nil
}
