package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Chain tries each member in order and returns the first non-blank answer.
type Chain struct {
	members []Completer
	log     *logrus.Entry
}

var _ Completer = (*Chain)(nil)

func NewChain(log *logrus.Entry, members ...Completer) *Chain {
	return &Chain{members: members, log: log}
}

func (c *Chain) Name() string { return "chain" }

// Len is the number of configured members.
func (c *Chain) Len() int { return len(c.members) }

func (c *Chain) Complete(ctx context.Context, req Request) (string, error) {
	if len(c.members) == 0 {
		return "", ErrNoCompleters
	}
	var errs []error
	for _, m := range c.members {
		text, err := m.Complete(ctx, req)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrNoContent
		}
		if err == nil {
			return text, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.log.WithFields(logrus.Fields{
			"provider": m.Name(),
			"error":    err.Error(),
		}).Warn("completer failed, trying next")
	}
	return "", errors.Join(errs...)
}
