// Package chat answers free-text questions about the current recommendations.
package chat

import (
	"context"
	"strings"

	"product-insights-go/internal/metrics"
	"product-insights-go/internal/types"
)

const (
	GenericReply = "That's a great question! I'd be happy to provide more insights about your recommendations."
	ApologyReply = "I'm having trouble connecting to my AI brain right now, but I'd be happy to help with your recommendations!"
)

// QuickQuestions are the suggested prompts offered next to the chat box.
var QuickQuestions = []string{
	"Why these products?",
	"Are these good prices?",
	"Most popular item?",
}

type Responder interface {
	Name() string
	Reply(ctx context.Context, query string, profile types.UserProfile, recs []types.Recommendation) (string, error)
}

type entry struct {
	keyword string
	reply   string
}

// Keyword answers from a fixed table. The first keyword contained in the
// lower-cased query wins.
type Keyword struct {
	table []entry
}

var _ Responder = (*Keyword)(nil)

func NewKeyword() *Keyword {
	return &Keyword{table: []entry{
		{"why", "I recommended these products based on your interests in technology, gaming, and fitness. Each item aligns with your profile and purchase history."},
		{"price", "These are competitively priced items. The laptop stand offers great value at $49.99, while the smart watch, though pricier, provides comprehensive features."},
		{"popular", "The Smart Watch is currently the most popular among users with similar interests to yours."},
	}}
}

func (k *Keyword) Name() string { return "keyword" }

func (k *Keyword) Reply(_ context.Context, query string, _ types.UserProfile, _ []types.Recommendation) (string, error) {
	q := strings.ToLower(query)
	for _, e := range k.table {
		if strings.Contains(q, e.keyword) {
			metrics.ChatReplies.WithLabelValues(k.Name(), "matched").Inc()
			return e.reply, nil
		}
	}
	metrics.ChatReplies.WithLabelValues(k.Name(), "generic").Inc()
	return GenericReply, nil
}
