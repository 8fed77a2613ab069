package dataset

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"product-insights-go/internal/aggregator"
	"product-insights-go/internal/types"
)

// Report is one analytics export: the current batch, its summary, and the
// action tally at the time of export.
type Report struct {
	GeneratedAt     time.Time
	UserID          int
	Mode            string
	Summary         aggregator.Summary
	Recommendations []types.Recommendation
	Actions         map[int]types.ActionCounts
}

// WriteReport renders r as an XLSX workbook with Summary, Recommendations,
// Categories and Actions sheets.
func WriteReport(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summaryRows := [][]interface{}{
		{"metric", "value"},
		{"generated_at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"user_id", r.UserID},
		{"mode", r.Mode},
		{"total_recommendations", r.Summary.TotalRecommendations},
		{"avg_confidence_score", r.Summary.AvgConfidenceScore},
		{"price_min", r.Summary.PriceRange.Min},
		{"price_max", r.Summary.PriceRange.Max},
		{"price_avg", r.Summary.PriceRange.Avg},
		{"categories", len(r.Summary.CategoryDistribution)},
	}
	if err := writeRows(f, "Summary", summaryRows); err != nil {
		return err
	}

	recRows := [][]interface{}{
		{"product_id", "product_name", "score", "price", "category", "explanation", "marketing_copy"},
	}
	for _, rec := range r.Recommendations {
		recRows = append(recRows, []interface{}{
			rec.ProductID, rec.ProductName, rec.Score, rec.Price, rec.Category, rec.Explanation, rec.MarketingCopy,
		})
	}
	if err := writeNewSheet(f, "Recommendations", recRows); err != nil {
		return err
	}

	catRows := [][]interface{}{{"category", "count"}}
	for _, c := range r.Summary.CategoryDistribution {
		catRows = append(catRows, []interface{}{c.Category, c.Count})
	}
	if err := writeNewSheet(f, "Categories", catRows); err != nil {
		return err
	}

	ids := make([]int, 0, len(r.Actions))
	for id := range r.Actions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	actRows := [][]interface{}{{"product_id", "likes", "dislikes", "purchases"}}
	for _, id := range ids {
		c := r.Actions[id]
		actRows = append(actRows, []interface{}{id, c.Likes, c.Dislikes, c.Purchases})
	}
	if err := writeNewSheet(f, "Actions", actRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeNewSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
