// Package session owns the state of one dashboard: the selected profile, the
// strategy mode, the current batch and its summary, the action tally and the
// chat transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"product-insights-go/internal/aggregator"
	"product-insights-go/internal/chat"
	"product-insights-go/internal/dataset"
	"product-insights-go/internal/insights"
	"product-insights-go/internal/metrics"
	"product-insights-go/internal/source"
	"product-insights-go/internal/task"
	"product-insights-go/internal/types"
)

const Version = "1.0.0"

var (
	ErrUnknownUser       = errors.New("unknown user")
	ErrUnknownProduct    = errors.New("product not in current recommendations")
	ErrEmptyQuery        = errors.New("query is empty")
	ErrUnknownAction     = errors.New("unknown action")
	ErrUnknownMode       = errors.New("unknown mode")
	ErrNoRecommendations = errors.New("no recommendations loaded")
	ErrSuperseded        = task.ErrSuperseded
)

const chatErrorReply = "I'm having trouble connecting right now, but I'd be happy to help with your recommendations!"

type Mode string

const (
	ModeMock   Mode = "mock"
	ModeRemote Mode = "remote"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeMock, ModeRemote:
		return m, nil
	}
	return "", fmt.Errorf("mode %q: %w", s, ErrUnknownMode)
}

// Strategies is one interchangeable set of collaborators.
type Strategies struct {
	Source   source.Source
	Chat     chat.Responder
	Insights insights.Generator
}

type Options struct {
	Catalog       dataset.Catalog
	Strategies    map[Mode]Strategies
	Mode          Mode
	DefaultUserID int
	Now           func() time.Time
	Log           *logrus.Entry
}

type Session struct {
	mu sync.RWMutex

	catalog    dataset.Catalog
	strategies map[Mode]Strategies
	fixture    *source.Fixture
	now        func() time.Time
	log        *logrus.Entry

	mode       Mode
	profile    types.UserProfile
	records    []types.Recommendation
	summary    *aggregator.Summary
	updatedAt  time.Time
	tally      *tally
	transcript []types.ChatMessage

	// gen orders refreshes; only the refresh holding the latest gen may
	// publish its batch.
	gen       uint64
	refreshes task.Latest[Snapshot]
}

func New(opts Options) (*Session, error) {
	if len(opts.Strategies) == 0 {
		return nil, errors.New("session: no strategies configured")
	}
	if _, ok := opts.Strategies[opts.Mode]; !ok {
		return nil, fmt.Errorf("session: mode %q: %w", opts.Mode, ErrUnknownMode)
	}
	strategies := make(map[Mode]Strategies, len(opts.Strategies))
	for m, st := range opts.Strategies {
		if st.Source == nil || st.Chat == nil {
			return nil, fmt.Errorf("session: mode %q is missing a source or chat responder", m)
		}
		if st.Insights == nil {
			st.Insights = insights.Static{}
		}
		strategies[m] = st
	}
	if len(opts.Catalog.Profiles) == 0 {
		opts.Catalog = dataset.Default()
	}
	profile, ok := opts.Catalog.Find(opts.DefaultUserID)
	if !ok {
		return nil, fmt.Errorf("session: default user %d: %w", opts.DefaultUserID, ErrUnknownUser)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Session{
		catalog:    opts.Catalog,
		strategies: strategies,
		fixture:    source.NewFixture(opts.Catalog.Recommendations),
		now:        opts.Now,
		log:        opts.Log.WithField("component", "session"),
		mode:       opts.Mode,
		profile:    profile,
		tally:      newTally(),
	}, nil
}

// Snapshot is the dashboard state at one instant.
type Snapshot struct {
	Version         string                 `json:"version"`
	User            types.UserProfile      `json:"user"`
	Mode            Mode                   `json:"mode"`
	Loading         bool                   `json:"loading"`
	Recommendations []types.Recommendation `json:"recommendations"`
	Summary         *aggregator.Summary    `json:"summary,omitempty"`
	UpdatedAt       *time.Time             `json:"updated_at,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:         Version,
		User:            s.profile,
		Mode:            s.mode,
		Loading:         s.refreshes.Running(),
		Recommendations: append([]types.Recommendation{}, s.records...),
	}
	if s.summary != nil {
		sum := *s.summary
		snap.Summary = &sum
		at := s.updatedAt
		snap.UpdatedAt = &at
	}
	return snap
}

func (s *Session) Profiles() []types.UserProfile {
	return append([]types.UserProfile(nil), s.catalog.Profiles...)
}

func (s *Session) Lookup(userID int) (types.UserProfile, error) {
	p, ok := s.catalog.Find(userID)
	if !ok {
		return types.UserProfile{}, fmt.Errorf("user %d: %w", userID, ErrUnknownUser)
	}
	return p, nil
}

func (s *Session) Profile() types.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// SelectUser switches the profile and reloads recommendations for it.
func (s *Session) SelectUser(ctx context.Context, userID int) (Snapshot, error) {
	p, err := s.Lookup(userID)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	s.log.WithField("user_id", userID).Info("user selected")
	return s.Refresh(ctx)
}

func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Modes lists the configured modes.
func (s *Session) Modes() []Mode {
	out := make([]Mode, 0, len(s.strategies))
	for _, m := range []Mode{ModeMock, ModeRemote} {
		if _, ok := s.strategies[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// SetMode switches strategies. The current batch stays until the next refresh.
func (s *Session) SetMode(m Mode) error {
	if _, ok := s.strategies[m]; !ok {
		return fmt.Errorf("mode %q: %w", m, ErrUnknownMode)
	}
	s.mu.Lock()
	prev := s.mode
	s.mode = m
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"from": prev, "to": m}).Info("mode changed")
	return nil
}

// Refresh loads a new batch and waits for it. A refresh started while this
// one is in flight wins; this call then returns ErrSuperseded.
func (s *Session) Refresh(ctx context.Context) (Snapshot, error) {
	return s.startRefresh(ctx, task.Callbacks[Snapshot]{}).Wait()
}

// RefreshAsync starts a refresh and returns at once. Callbacks of a refresh
// superseded by a newer one are not delivered.
func (s *Session) RefreshAsync(ctx context.Context, onDone func(Snapshot), onErr func(error)) {
	s.startRefresh(ctx, task.Callbacks[Snapshot]{OnSuccess: onDone, OnFailure: onErr})
}

func (s *Session) startRefresh(ctx context.Context, cb task.Callbacks[Snapshot]) *task.Task[Snapshot] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	gen := s.gen
	profile := s.profile
	mode := s.mode
	strat := s.strategies[mode]

	return s.refreshes.Start(ctx, func(ctx context.Context) (Snapshot, error) {
		return s.load(ctx, gen, profile, mode, strat.Source)
	}, cb)
}

func (s *Session) load(ctx context.Context, gen uint64, profile types.UserProfile, mode Mode, src source.Source) (Snapshot, error) {
	log := s.log.WithFields(logrus.Fields{"user_id": profile.UserID, "mode": mode, "source": src.Name()})

	recs, err := src.Recommend(ctx, profile)
	if err == nil && len(recs) == 0 {
		err = source.ErrNoRecords
	}
	if err != nil {
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		log.WithField("error", err.Error()).Warn("source failed, using fixture")
		metrics.RecommendationFallbacks.WithLabelValues("source_error").Inc()
		if recs, err = s.fixture.Recommend(ctx, profile); err != nil {
			return Snapshot{}, fmt.Errorf("fixture: %w", err)
		}
	}

	sum, err := aggregator.Aggregate(recs)
	if err != nil {
		return Snapshot{}, fmt.Errorf("aggregate: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return Snapshot{}, ErrSuperseded
	}
	s.records = recs
	s.summary = &sum
	s.updatedAt = s.now()
	log.WithField("count", len(recs)).Info("recommendations refreshed")
	snap := s.snapshotLocked()
	snap.Loading = false
	return snap, nil
}

func (s *Session) Recommendations() []types.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Recommendation{}, s.records...)
}

func (s *Session) Summary() (aggregator.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return aggregator.Summary{}, ErrNoRecommendations
	}
	return *s.summary, nil
}

func (s *Session) Performance() []types.PerformancePoint {
	return append([]types.PerformancePoint(nil), s.catalog.Performance...)
}

type ActionResult struct {
	ProductID int                `json:"product_id"`
	Action    types.Action       `json:"action"`
	Counts    types.ActionCounts `json:"counts"`
	Message   string             `json:"message"`
}

// RecordAction counts a like, dislike or buy on a product in the current batch.
func (s *Session) RecordAction(productID int, action string) (ActionResult, error) {
	a, err := types.ParseAction(strings.ToLower(strings.TrimSpace(action)))
	if err != nil {
		return ActionResult{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasProductLocked(productID) {
		return ActionResult{}, fmt.Errorf("product %d: %w", productID, ErrUnknownProduct)
	}
	counts := s.tally.record(productID, a)
	s.log.WithFields(logrus.Fields{"product_id": productID, "action": a}).Debug("action recorded")
	return ActionResult{ProductID: productID, Action: a, Counts: counts, Message: a.Feedback()}, nil
}

func (s *Session) hasProductLocked(productID int) bool {
	for _, r := range s.records {
		if r.ProductID == productID {
			return true
		}
	}
	return false
}

// Actions returns a copy of the tally.
func (s *Session) Actions() map[int]types.ActionCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally.snapshot()
}

// ActionsFor returns the counters for one product.
func (s *Session) ActionsFor(productID int) types.ActionCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally.get(productID)
}

type Exchange struct {
	Question types.ChatMessage `json:"question"`
	Reply    types.ChatMessage `json:"reply"`
}

// Ask records the question and the responder's reply in the transcript. Both
// are appended together once the reply is known; a canceled ask leaves the
// transcript untouched.
func (s *Session) Ask(ctx context.Context, query string) (Exchange, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Exchange{}, ErrEmptyQuery
	}

	s.mu.RLock()
	question := s.message(types.MessageUser, query)
	profile := s.profile
	recs := append([]types.Recommendation{}, s.records...)
	responder := s.strategies[s.mode].Chat
	s.mu.RUnlock()

	text, err := responder.Reply(ctx, query, profile, recs)
	if err != nil {
		if ctx.Err() != nil {
			return Exchange{}, ctx.Err()
		}
		s.log.WithFields(logrus.Fields{"responder": responder.Name(), "error": err.Error()}).Warn("chat responder failed")
		text = chatErrorReply
	}

	s.mu.Lock()
	reply := s.message(types.MessageAI, text)
	s.transcript = append(s.transcript, question, reply)
	s.mu.Unlock()
	return Exchange{Question: question, Reply: reply}, nil
}

func (s *Session) message(kind, content string) types.ChatMessage {
	return types.ChatMessage{
		ID:        uuid.NewString(),
		Type:      kind,
		Content:   content,
		Timestamp: s.now(),
	}
}

func (s *Session) Transcript() []types.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ChatMessage{}, s.transcript...)
}

// Insights describes the current user against the current batch.
func (s *Session) Insights(ctx context.Context) (types.UserInsights, error) {
	s.mu.RLock()
	if s.summary == nil {
		s.mu.RUnlock()
		return types.UserInsights{}, ErrNoRecommendations
	}
	profile := s.profile
	recs := append([]types.Recommendation{}, s.records...)
	sum := *s.summary
	gen := s.strategies[s.mode].Insights
	s.mu.RUnlock()

	out, err := gen.Generate(ctx, profile, recs, sum)
	if err != nil {
		if ctx.Err() != nil {
			return types.UserInsights{}, ctx.Err()
		}
		s.log.WithFields(logrus.Fields{"generator": gen.Name(), "error": err.Error()}).Warn("insights failed, using static rules")
		return insights.Static{}.Generate(ctx, profile, recs, sum)
	}
	return out, nil
}

// Report collects what the analytics export needs.
func (s *Session) Report() (dataset.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return dataset.Report{}, ErrNoRecommendations
	}
	return dataset.Report{
		GeneratedAt:     s.now(),
		UserID:          s.profile.UserID,
		Mode:            string(s.mode),
		Summary:         *s.summary,
		Recommendations: append([]types.Recommendation{}, s.records...),
		Actions:         s.tally.snapshot(),
	}, nil
}

// Reset cancels any refresh in flight and clears batch, summary, tally and
// transcript. Profile and mode are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.refreshes.Cancel()
	s.records = nil
	s.summary = nil
	s.updatedAt = time.Time{}
	s.tally.reset()
	s.transcript = nil
	s.log.Info("session reset")
}
