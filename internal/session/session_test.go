package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-insights-go/internal/aggregator"
	"product-insights-go/internal/chat"
	"product-insights-go/internal/dataset"
	"product-insights-go/internal/insights"
	"product-insights-go/internal/logger"
	"product-insights-go/internal/source"
	"product-insights-go/internal/types"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	name string
	fn   func(ctx context.Context, p types.UserProfile) ([]types.Recommendation, error)
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Recommend(ctx context.Context, p types.UserProfile) ([]types.Recommendation, error) {
	return s.fn(ctx, p)
}

type stubChat struct {
	reply string
	err   error
}

func (stubChat) Name() string { return "stub" }

func (c stubChat) Reply(ctx context.Context, q string, p types.UserProfile, recs []types.Recommendation) (string, error) {
	return c.reply, c.err
}

func newSession(t *testing.T, remote Strategies) *Session {
	t.Helper()
	mock := Strategies{
		Source: source.NewFixture(dataset.Recommendations()),
		Chat:   chat.NewKeyword(),
	}
	strategies := map[Mode]Strategies{ModeMock: mock}
	if remote.Source != nil {
		strategies[ModeRemote] = remote
	}
	s, err := New(Options{
		Catalog:       dataset.Default(),
		Strategies:    strategies,
		Mode:          ModeMock,
		DefaultUserID: 1,
		Now:           func() time.Time { return fixedNow },
		Log:           logger.Discard().Entry,
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{
		Strategies:    map[Mode]Strategies{ModeMock: {Source: source.NewFixture(nil), Chat: chat.NewKeyword()}},
		Mode:          ModeRemote,
		DefaultUserID: 1,
	})
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = New(Options{
		Strategies:    map[Mode]Strategies{ModeMock: {Source: source.NewFixture(nil), Chat: chat.NewKeyword()}},
		Mode:          ModeMock,
		DefaultUserID: 42,
	})
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestRefresh_MockBatch(t *testing.T) {
	s := newSession(t, Strategies{})

	_, err := s.Summary()
	assert.ErrorIs(t, err, ErrNoRecommendations)

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Recommendations, 6)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 6, snap.Summary.TotalRecommendations)
	assert.False(t, snap.Loading)
	assert.Equal(t, Version, snap.Version)
	require.NotNil(t, snap.UpdatedAt)
	assert.Equal(t, fixedNow, *snap.UpdatedAt)

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 4, sum.CategoryDistribution.Count("Electronics"))
}

func TestRefresh_SourceErrorUsesFixture(t *testing.T) {
	s := newSession(t, Strategies{
		Source: stubSource{name: "broken", fn: func(ctx context.Context, p types.UserProfile) ([]types.Recommendation, error) {
			return nil, errors.New("upstream 500")
		}},
		Chat: chat.NewKeyword(),
	})
	require.NoError(t, s.SetMode(ModeRemote))

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataset.Recommendations(), snap.Recommendations)
	assert.Equal(t, ModeRemote, snap.Mode)
}

func TestRefresh_EmptyBatchUsesFixture(t *testing.T) {
	s := newSession(t, Strategies{
		Source: stubSource{name: "empty", fn: func(ctx context.Context, p types.UserProfile) ([]types.Recommendation, error) {
			return nil, nil
		}},
		Chat: chat.NewKeyword(),
	})
	require.NoError(t, s.SetMode(ModeRemote))

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Recommendations, 6)
}

func TestRefresh_SupersededByNewer(t *testing.T) {
	started := make(chan struct{})
	s := newSession(t, Strategies{
		Source: stubSource{name: "slow", fn: func(ctx context.Context, p types.UserProfile) ([]types.Recommendation, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		Chat: chat.NewKeyword(),
	})
	require.NoError(t, s.SetMode(ModeRemote))

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = s.Refresh(context.Background())
	}()
	<-started

	require.NoError(t, s.SetMode(ModeMock))
	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	wg.Wait()

	assert.ErrorIs(t, slowErr, ErrSuperseded)
	assert.Equal(t, ModeMock, snap.Mode)
	assert.Len(t, s.Recommendations(), 6)
}

func TestRefreshAsync(t *testing.T) {
	s := newSession(t, Strategies{})
	done := make(chan Snapshot, 1)
	s.RefreshAsync(context.Background(), func(snap Snapshot) { done <- snap }, func(err error) { t.Errorf("refresh failed: %v", err) })

	select {
	case snap := <-done:
		assert.Len(t, snap.Recommendations, 6)
	case <-time.After(time.Second):
		t.Fatal("async refresh did not complete")
	}
}

func TestSelectUser(t *testing.T) {
	var seen []int
	var mu sync.Mutex
	s := newSession(t, Strategies{
		Source: stubSource{name: "spy", fn: func(ctx context.Context, p types.UserProfile) ([]types.Recommendation, error) {
			mu.Lock()
			seen = append(seen, p.UserID)
			mu.Unlock()
			return dataset.Recommendations()[:2], nil
		}},
		Chat: chat.NewKeyword(),
	})
	require.NoError(t, s.SetMode(ModeRemote))

	snap, err := s.SelectUser(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.User.UserID)
	assert.Len(t, snap.Recommendations, 2)
	assert.Equal(t, []int{3}, seen)

	_, err = s.SelectUser(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Equal(t, 3, s.Profile().UserID)
}

func TestSetMode(t *testing.T) {
	s := newSession(t, Strategies{})
	assert.ErrorIs(t, s.SetMode(ModeRemote), ErrUnknownMode)
	assert.Equal(t, []Mode{ModeMock}, s.Modes())

	m, err := ParseMode(" Remote ")
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, m)
	_, err = ParseMode("live")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestRecordAction(t *testing.T) {
	s := newSession(t, Strategies{})

	_, err := s.RecordAction(8, "like")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = s.Refresh(context.Background())
	require.NoError(t, err)

	res, err := s.RecordAction(8, "like")
	require.NoError(t, err)
	assert.Equal(t, types.ActionCounts{Likes: 1}, res.Counts)
	assert.Equal(t, "👍 Product liked!", res.Message)

	res, err = s.RecordAction(8, "BUY")
	require.NoError(t, err)
	assert.Equal(t, types.ActionCounts{Likes: 1, Purchases: 1}, res.Counts)
	assert.Equal(t, "🛒 Product added to cart!", res.Message)

	_, err = s.RecordAction(8, "love")
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = s.RecordAction(1000, "dislike")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	assert.Equal(t, map[int]types.ActionCounts{8: {Likes: 1, Purchases: 1}}, s.Actions())

	// tally survives a reload of the same batch
	_, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActionsFor(8).Likes)
}

func TestAsk(t *testing.T) {
	s := newSession(t, Strategies{})

	_, err := s.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	ex, err := s.Ask(context.Background(), "Are these good prices?")
	require.NoError(t, err)
	assert.Equal(t, types.MessageUser, ex.Question.Type)
	assert.Equal(t, types.MessageAI, ex.Reply.Type)
	assert.Contains(t, ex.Reply.Content, "competitively priced")
	assert.NotEmpty(t, ex.Question.ID)
	assert.NotEqual(t, ex.Question.ID, ex.Reply.ID)
	assert.Equal(t, fixedNow, ex.Reply.Timestamp)

	tr := s.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, "Are these good prices?", tr[0].Content)
}

func TestAsk_ResponderError(t *testing.T) {
	s := newSession(t, Strategies{
		Source: source.NewFixture(dataset.Recommendations()),
		Chat:   stubChat{err: errors.New("nope")},
	})
	require.NoError(t, s.SetMode(ModeRemote))

	ex, err := s.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, chatErrorReply, ex.Reply.Content)
}

func TestAsk_CanceledLeavesTranscriptUntouched(t *testing.T) {
	s := newSession(t, Strategies{
		Source: source.NewFixture(dataset.Recommendations()),
		Chat:   stubChat{err: context.Canceled},
	})
	require.NoError(t, s.SetMode(ModeRemote))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Ask(ctx, "Most popular item?")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Transcript())
}

func TestInsights(t *testing.T) {
	s := newSession(t, Strategies{})
	_, err := s.Insights(context.Background())
	assert.ErrorIs(t, err, ErrNoRecommendations)

	_, err = s.Refresh(context.Background())
	require.NoError(t, err)
	got, err := s.Insights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Electronics, Health", got.CategoryPreferences)
}

type failingInsights struct{}

func (failingInsights) Name() string { return "failing" }

func (failingInsights) Generate(context.Context, types.UserProfile, []types.Recommendation, aggregator.Summary) (types.UserInsights, error) {
	return types.UserInsights{}, errors.New("down")
}

func TestInsights_FallsBackToStatic(t *testing.T) {
	s := newSession(t, Strategies{
		Source:   source.NewFixture(dataset.Recommendations()),
		Chat:     chat.NewKeyword(),
		Insights: failingInsights{},
	})
	require.NoError(t, s.SetMode(ModeRemote))
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	got, err := s.Insights(context.Background())
	require.NoError(t, err)
	want, _ := insights.Static{}.Generate(context.Background(), s.Profile(), s.Recommendations(), mustSummary(t, s))
	assert.Equal(t, want, got)
}

func TestReportAndReset(t *testing.T) {
	s := newSession(t, Strategies{})
	_, err := s.Report()
	assert.ErrorIs(t, err, ErrNoRecommendations)

	_, err = s.Refresh(context.Background())
	require.NoError(t, err)
	_, err = s.RecordAction(5, "dislike")
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "why?")
	require.NoError(t, err)

	rep, err := s.Report()
	require.NoError(t, err)
	assert.Equal(t, "mock", rep.Mode)
	assert.Equal(t, 1, rep.UserID)
	assert.Equal(t, 1, rep.Actions[5].Dislikes)
	assert.Len(t, rep.Recommendations, 6)

	s.Reset()
	snap := s.Snapshot()
	assert.Empty(t, snap.Recommendations)
	assert.Nil(t, snap.Summary)
	assert.Empty(t, s.Actions())
	assert.Empty(t, s.Transcript())
	assert.Equal(t, 1, snap.User.UserID)
}

func TestPerformance(t *testing.T) {
	s := newSession(t, Strategies{})
	p := s.Performance()
	require.Len(t, p, 7)
	assert.Equal(t, "Sun", p[6].Name)
	assert.Equal(t, 28, p[6].Recommendations)
}

func mustSummary(t *testing.T, s *Session) aggregator.Summary {
	t.Helper()
	sum, err := s.Summary()
	require.NoError(t, err)
	return sum
}
