package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"product-insights-go/internal/metrics"
)

type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// Cooldown is how long the breaker stays open before a half-open probe.
	Cooldown time.Duration
}

// Breaker guards one Completer with a circuit breaker. While open, calls fail
// fast with gobreaker.ErrOpenState and never reach the network.
type Breaker struct {
	next Completer
	cb   *gobreaker.CircuitBreaker[string]
	log  *logrus.Entry
}

var _ Completer = (*Breaker)(nil)

func NewBreaker(next Completer, cfg BreakerConfig, log *logrus.Entry) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	name := next.Name()
	log = log.WithField("breaker", name)

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// a caller walking away says nothing about the endpoint's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{next: next, cb: cb, log: log}
}

func (b *Breaker) Name() string { return b.next.Name() }

// State reports the breaker's current state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Complete(ctx context.Context, req Request) (string, error) {
	text, err := b.cb.Execute(func() (string, error) {
		return b.next.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordLLMRequest(b.Name(), "rejected", 0)
		b.log.WithField("error", err.Error()).Debug("request rejected by breaker")
	}
	return text, err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
