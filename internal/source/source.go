// Package source produces recommendation batches for a user profile, either
// from the fixed catalog or from the remote text-generation chain.
package source

import (
	"context"
	"errors"

	"product-insights-go/internal/types"
)

var ErrNoRecords = errors.New("source: no recommendation records")

type Source interface {
	Name() string
	Recommend(ctx context.Context, profile types.UserProfile) ([]types.Recommendation, error)
}

// Fixture returns the same batch for every profile.
type Fixture struct {
	records []types.Recommendation
}

var _ Source = (*Fixture)(nil)

func NewFixture(records []types.Recommendation) *Fixture {
	return &Fixture{records: append([]types.Recommendation(nil), records...)}
}

func (f *Fixture) Name() string { return "fixture" }

func (f *Fixture) Recommend(ctx context.Context, _ types.UserProfile) ([]types.Recommendation, error) {
	if len(f.records) == 0 {
		return nil, ErrNoRecords
	}
	return append([]types.Recommendation(nil), f.records...), nil
}
