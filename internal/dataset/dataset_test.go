package dataset

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"product-insights-go/internal/aggregator"
	"product-insights-go/internal/logger"
	"product-insights-go/internal/types"
)

func TestDefaultCatalog(t *testing.T) {
	cat := Default()
	assert.Len(t, cat.Profiles, 5)
	assert.Len(t, cat.Recommendations, 6)
	assert.Len(t, cat.Performance, 7)

	for _, r := range cat.Recommendations {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.GreaterOrEqual(t, r.Price, 0.0)
	}

	p, ok := cat.Find(4)
	require.True(t, ok)
	assert.Equal(t, []string{"fitness", "health", "technology"}, p.Preferences)
	_, ok = cat.Find(99)
	assert.False(t, ok)
}

func TestDefaultCatalog_ReturnsCopies(t *testing.T) {
	a := Recommendations()
	a[0].ProductName = "changed"
	assert.Equal(t, "Laptop Stand", Recommendations()[0].ProductName)
}

func writeWorkbook(t *testing.T, sheets map[string][][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		require.NoError(t, writeRows(f, name, rows))
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoad_OverlaysSheets(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Recommendations": {
			{"Product ID", "Product Name", "Score", "Explanation", "Marketing Copy", "Price", "Category"},
			{1, "Desk Lamp", 0.7, "bright", "buy it", 25.5, "Home"},
			{2, "Bad Score", 1.7, "", "", 10, "Home"},
			{3, "", 0.5, "", "", 10, "Home"},
			{4, "Kettle", 0.6, "", "", "$30", "Kitchen"},
		},
		"profiles": {
			{"user_id", "age", "gender", "preferences", "purchase_history"},
			{7, 22, "F", "music; art", "headphones"},
			{8, 0, "M", "books", ""},
		},
	})

	cat, err := Load(path, logger.Discard().Entry)
	require.NoError(t, err)

	require.Len(t, cat.Recommendations, 2)
	assert.Equal(t, "Desk Lamp", cat.Recommendations[0].ProductName)
	assert.InDelta(t, 25.5, cat.Recommendations[0].Price, 1e-9)
	assert.Equal(t, "Kitchen", cat.Recommendations[1].Category)
	assert.InDelta(t, 30.0, cat.Recommendations[1].Price, 1e-9)

	require.Len(t, cat.Profiles, 1)
	assert.Equal(t, 7, cat.Profiles[0].UserID)
	assert.Equal(t, []string{"music", "art"}, cat.Profiles[0].Preferences)
	assert.Equal(t, []string{"headphones"}, cat.Profiles[0].PurchaseHistory)

	// no performance sheet
	assert.Equal(t, Performance(), cat.Performance)
}

func TestLoad_SkipsDuplicateProductID(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"recommendations": {
			{"product_id", "product_name", "score", "explanation", "marketing_copy", "price", "category"},
			{11, "Yoga Mat", 0.8, "", "", 35, "Fitness"},
			{11, "Foam Roller", 0.6, "", "", 20, "Fitness"},
			{12, "Water Bottle", 0.5, "", "", 15, "Fitness"},
		},
	})

	cat, err := Load(path, logger.Discard().Entry)
	require.NoError(t, err)
	require.Len(t, cat.Recommendations, 2)
	assert.Equal(t, "Yoga Mat", cat.Recommendations[0].ProductName)
	assert.Equal(t, 12, cat.Recommendations[1].ProductID)
}

func TestLoad_SheetWithoutUsableRowsKeepsFixture(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"performance": {
			{"name", "recommendations", "clicks", "purchases"},
			{"", 1, 1, 1},
		},
	})

	cat, err := Load(path, logger.Discard().Entry)
	require.NoError(t, err)
	assert.Equal(t, Performance(), cat.Performance)
	assert.Equal(t, Recommendations(), cat.Recommendations)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.xlsx"), logger.Discard().Entry)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	recs := Recommendations()
	sum, err := aggregator.Aggregate(recs)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = WriteReport(&buf, Report{
		GeneratedAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		UserID:          1,
		Mode:            "mock",
		Summary:         sum,
		Recommendations: recs,
		Actions: map[int]types.ActionCounts{
			9: {Likes: 1},
			5: {Purchases: 2},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Recommendations", "Categories", "Actions"}, f.GetSheetList())

	rows, err := f.GetRows("Recommendations")
	require.NoError(t, err)
	assert.Len(t, rows, 7)
	assert.Equal(t, "Laptop Stand", rows[1][1])

	rows, err = f.GetRows("Categories")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"category", "count"}, {"Electronics", "4"}, {"Health", "2"}}, rows)

	rows, err = f.GetRows("Actions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"5", "0", "0", "2"}, rows[1])
	assert.Equal(t, []string{"9", "1", "0", "0"}, rows[2])

	rows, err = f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"total_recommendations", "6"}, rows[4])
}
