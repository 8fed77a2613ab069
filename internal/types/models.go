package types

import "time"

// Recommendation is one suggested product. Records are immutable once a source
// has produced them; a new batch replaces the old one wholesale.
type Recommendation struct {
	ProductID     int     `json:"product_id"`
	ProductName   string  `json:"product_name" validate:"required"`
	Score         float64 `json:"score" validate:"gte=0,lte=1"`
	Explanation   string  `json:"explanation"`
	MarketingCopy string  `json:"marketing_copy"`
	Price         float64 `json:"price" validate:"gte=0"`
	Category      string  `json:"category"`
}

type UserProfile struct {
	UserID          int      `json:"user_id" validate:"gte=1"`
	Age             int      `json:"age" validate:"gt=0"`
	Gender          string   `json:"gender"`
	Preferences     []string `json:"preferences"`
	PurchaseHistory []string `json:"purchase_history,omitempty"`
	BrowsingHistory []string `json:"browsing_history,omitempty"`
}

// Interest returns the i-th interest tag or "" when the profile has fewer tags.
func (p UserProfile) Interest(i int) string {
	if i < 0 || i >= len(p.Preferences) {
		return ""
	}
	return p.Preferences[i]
}

// Chat transcript message types.
const (
	MessageUser = "user"
	MessageAI   = "ai"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PerformancePoint is one bucket of the engagement trend chart.
type PerformancePoint struct {
	Name            string `json:"name"`
	Recommendations int    `json:"recommendations"`
	Clicks          int    `json:"clicks"`
	Purchases       int    `json:"purchases"`
}

type UserInsights struct {
	Patterns               string `json:"patterns"`
	PriceSensitivity       string `json:"price_sensitivity"`
	CategoryPreferences    string `json:"category_preferences"`
	CrossSellOpportunities string `json:"cross_sell_opportunities"`
}
