package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"product-insights-go/internal/llm"
	"product-insights-go/internal/metrics"
	"product-insights-go/internal/types"
)

const (
	chatSystem      = "You are a helpful AI shopping assistant that provides personalized advice about product recommendations."
	chatMaxTokens   = 300
	chatTemperature = 0.7
)

// Remote forwards the question to the completer and answers with ApologyReply
// when it fails.
type Remote struct {
	completer llm.Completer
	log       *logrus.Entry
}

var _ Responder = (*Remote)(nil)

func NewRemote(completer llm.Completer, log *logrus.Entry) *Remote {
	return &Remote{completer: completer, log: log}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Reply(ctx context.Context, query string, profile types.UserProfile, recs []types.Recommendation) (string, error) {
	req := llm.UserPrompt(chatSystem, Prompt(query, profile, recs))
	req.MaxTokens = chatMaxTokens
	req.Temperature = chatTemperature

	text, err := r.completer.Complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.log.WithFields(logrus.Fields{
			"user_id": profile.UserID,
			"error":   err.Error(),
		}).Warn("remote chat failed, sending apology")
		metrics.ChatReplies.WithLabelValues(r.Name(), "fallback").Inc()
		return ApologyReply, nil
	}
	metrics.ChatReplies.WithLabelValues(r.Name(), "success").Inc()
	return strings.TrimSpace(text), nil
}

// Prompt builds the assistant prompt from the question, the profile and the
// batch currently on screen.
func Prompt(query string, p types.UserProfile, recs []types.Recommendation) string {
	lines := make([]string, 0, len(recs))
	for _, rec := range recs {
		lines = append(lines, fmt.Sprintf("- %s ($%s): %s",
			rec.ProductName, strconv.FormatFloat(rec.Price, 'f', -1, 64), rec.Explanation))
	}
	return fmt.Sprintf(`You are an AI shopping assistant. A user is asking about their product recommendations.

User Profile:
- Age: %d
- Gender: %s
- Interests: %s

Current Recommendations:
%s

User Question: %q

Provide a helpful, personalized response about their recommendations. Be conversational and informative.`,
		p.Age, p.Gender, strings.Join(p.Preferences, ", "), strings.Join(lines, "\n"), query)
}
