// Package dataset holds the built-in catalog (profiles, recommendation
// records, engagement trend) and reads or writes it as XLSX workbooks.
package dataset

import "product-insights-go/internal/types"

// Catalog is everything the dashboard can show without a remote call.
type Catalog struct {
	Profiles        []types.UserProfile
	Recommendations []types.Recommendation
	Performance     []types.PerformancePoint
}

// Default returns a fresh copy of the built-in catalog.
func Default() Catalog {
	return Catalog{
		Profiles:        Profiles(),
		Recommendations: Recommendations(),
		Performance:     Performance(),
	}
}

func Profiles() []types.UserProfile {
	return []types.UserProfile{
		{UserID: 1, Age: 25, Gender: "M", Preferences: []string{"technology", "gaming", "fitness"}},
		{UserID: 2, Age: 30, Gender: "F", Preferences: []string{"fashion", "beauty", "travel"}},
		{UserID: 3, Age: 35, Gender: "M", Preferences: []string{"books", "technology", "cooking"}},
		{UserID: 4, Age: 28, Gender: "F", Preferences: []string{"fitness", "health", "technology"}},
		{UserID: 5, Age: 40, Gender: "M", Preferences: []string{"travel", "photography", "books"}},
	}
}

// Recommendations is the fixed six-record batch.
func Recommendations() []types.Recommendation {
	return []types.Recommendation{
		{
			ProductID:     8,
			ProductName:   "Laptop Stand",
			Score:         0.85,
			Explanation:   "Based on your interest in technology and gaming, this ergonomic laptop stand will improve your setup.",
			MarketingCopy: "Perfect for your tech-savvy lifestyle! Transform your gaming experience while protecting your health.",
			Price:         49.99,
			Category:      "Electronics",
		},
		{
			ProductID:     9,
			ProductName:   "Yoga Mat",
			Score:         0.78,
			Explanation:   "Given your fitness interests, this premium yoga mat is perfect for your workout routine.",
			MarketingCopy: "Take your fitness journey to the next level! Premium quality for all your workouts.",
			Price:         39.99,
			Category:      "Health",
		},
		{
			ProductID:     5,
			ProductName:   "Smart Watch",
			Score:         0.82,
			Explanation:   "Combining technology and fitness, this smart watch tracks workouts while keeping you connected.",
			MarketingCopy: "The perfect blend of tech and fitness! Monitor health and achieve your goals.",
			Price:         399.99,
			Category:      "Electronics",
		},
		{
			ProductID:     12,
			ProductName:   "Wireless Earbuds",
			Score:         0.91,
			Explanation:   "Perfect for your tech lifestyle! These premium wireless earbuds offer crystal clear sound for music and calls.",
			MarketingCopy: "Elevate your audio experience! Perfect for workouts, gaming, and daily use with amazing battery life.",
			Price:         129.99,
			Category:      "Electronics",
		},
		{
			ProductID:     15,
			ProductName:   "Fitness Tracker",
			Score:         0.87,
			Explanation:   "Track your fitness goals with precision! This advanced fitness tracker monitors heart rate, steps, and sleep.",
			MarketingCopy: "Achieve your fitness goals faster! Get detailed insights into your health and performance.",
			Price:         89.99,
			Category:      "Health",
		},
		{
			ProductID:     18,
			ProductName:   "Gaming Mouse",
			Score:         0.89,
			Explanation:   "Level up your gaming experience! This high-precision gaming mouse offers customizable buttons and RGB lighting.",
			MarketingCopy: "Dominate your games with precision! Ergonomic design for hours of comfortable gaming.",
			Price:         79.99,
			Category:      "Electronics",
		},
	}
}

// Performance is the seven-day engagement series.
func Performance() []types.PerformancePoint {
	return []types.PerformancePoint{
		{Name: "Mon", Recommendations: 12, Clicks: 8, Purchases: 3},
		{Name: "Tue", Recommendations: 15, Clicks: 12, Purchases: 5},
		{Name: "Wed", Recommendations: 18, Clicks: 14, Purchases: 6},
		{Name: "Thu", Recommendations: 22, Clicks: 18, Purchases: 8},
		{Name: "Fri", Recommendations: 20, Clicks: 16, Purchases: 7},
		{Name: "Sat", Recommendations: 25, Clicks: 20, Purchases: 9},
		{Name: "Sun", Recommendations: 28, Clicks: 22, Purchases: 10},
	}
}

// Find returns the profile with the given id.
func (c Catalog) Find(userID int) (types.UserProfile, bool) {
	for _, p := range c.Profiles {
		if p.UserID == userID {
			return p, true
		}
	}
	return types.UserProfile{}, false
}
