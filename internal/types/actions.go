package types

import "fmt"

type Action string

const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
	ActionBuy     Action = "buy"
)

// ParseAction accepts the wire names of the three product actions.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionLike, ActionDislike, ActionBuy:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Feedback is the short acknowledgement shown after an action.
func (a Action) Feedback() string {
	switch a {
	case ActionLike:
		return "👍 Product liked!"
	case ActionDislike:
		return "👎 Product disliked!"
	case ActionBuy:
		return "🛒 Product added to cart!"
	}
	return ""
}

// ActionCounts are the per-product interaction counters.
type ActionCounts struct {
	Likes     int `json:"likes"`
	Dislikes  int `json:"dislikes"`
	Purchases int `json:"purchases"`
}

func (c ActionCounts) Apply(a Action) ActionCounts {
	switch a {
	case ActionLike:
		c.Likes++
	case ActionDislike:
		c.Dislikes++
	case ActionBuy:
		c.Purchases++
	}
	return c
}
