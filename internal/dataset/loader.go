package dataset

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"product-insights-go/internal/types"
	"product-insights-go/internal/validation"
)

const (
	SheetProfiles        = "profiles"
	SheetRecommendations = "recommendations"
	SheetPerformance     = "performance"
)

// Load reads a workbook and overlays it on the built-in catalog. Each of the
// three sheets is optional; a missing or empty sheet keeps the fixture for
// that part. Rows that fail validation are skipped with a warning.
func Load(path string, log *logrus.Entry) (Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return fromWorkbook(f, log.WithField("path", path))
}

// LoadReader is Load for an in-memory workbook.
func LoadReader(r io.Reader, log *logrus.Entry) (Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Catalog{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return fromWorkbook(f, log)
}

func fromWorkbook(f *excelize.File, log *logrus.Entry) (Catalog, error) {
	cat := Default()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Catalog{}, fmt.Errorf("no sheets")
	}

	if rows, ok, err := sheetRows(f, sheets, SheetProfiles); err != nil {
		return Catalog{}, err
	} else if ok {
		if ps := parseProfiles(rows, log); len(ps) > 0 {
			cat.Profiles = ps
		} else {
			log.WithField("sheet", SheetProfiles).Warn("no usable rows, keeping built-in profiles")
		}
	}

	if rows, ok, err := sheetRows(f, sheets, SheetRecommendations); err != nil {
		return Catalog{}, err
	} else if ok {
		if recs := parseRecommendations(rows, log); len(recs) > 0 {
			cat.Recommendations = recs
		} else {
			log.WithField("sheet", SheetRecommendations).Warn("no usable rows, keeping built-in recommendations")
		}
	}

	if rows, ok, err := sheetRows(f, sheets, SheetPerformance); err != nil {
		return Catalog{}, err
	} else if ok {
		if pts := parsePerformance(rows); len(pts) > 0 {
			cat.Performance = pts
		} else {
			log.WithField("sheet", SheetPerformance).Warn("no usable rows, keeping built-in performance series")
		}
	}

	log.WithFields(logrus.Fields{
		"profiles":        len(cat.Profiles),
		"recommendations": len(cat.Recommendations),
		"performance":     len(cat.Performance),
	}).Info("dataset loaded")
	return cat, nil
}

// sheetRows finds a sheet by case-insensitive name.
func sheetRows(f *excelize.File, sheets []string, name string) ([][]string, bool, error) {
	for _, s := range sheets {
		if !strings.EqualFold(strings.TrimSpace(s), name) {
			continue
		}
		rows, err := f.GetRows(s)
		if err != nil {
			return nil, false, fmt.Errorf("read rows %s: %w", s, err)
		}
		if len(rows) <= 1 {
			return nil, false, nil
		}
		return rows, true, nil
	}
	return nil, false, nil
}

func parseProfiles(rows [][]string, log *logrus.Entry) []types.UserProfile {
	idIdx, ageIdx, genderIdx, prefIdx, purchaseIdx, browseIdx := -1, -1, -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "pref") || strings.Contains(l, "interest"):
			prefIdx = first(prefIdx, i)
		case strings.Contains(l, "purchase"):
			purchaseIdx = first(purchaseIdx, i)
		case strings.Contains(l, "brows"):
			browseIdx = first(browseIdx, i)
		case strings.Contains(l, "id"):
			idIdx = first(idIdx, i)
		case strings.Contains(l, "age"):
			ageIdx = first(ageIdx, i)
		case strings.Contains(l, "gender") || l == "sex":
			genderIdx = first(genderIdx, i)
		}
	}

	var out []types.UserProfile
	for n, r := range rows[1:] {
		p := types.UserProfile{
			UserID:          atoi(cell(r, idIdx)),
			Age:             atoi(cell(r, ageIdx)),
			Gender:          cell(r, genderIdx),
			Preferences:     splitList(cell(r, prefIdx)),
			PurchaseHistory: splitList(cell(r, purchaseIdx)),
			BrowsingHistory: splitList(cell(r, browseIdx)),
		}
		if err := validation.Profile(p); err != nil {
			log.WithFields(logrus.Fields{"sheet": SheetProfiles, "row": n + 2, "error": err.Error()}).Warn("skipping row")
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseRecommendations(rows [][]string, log *logrus.Entry) []types.Recommendation {
	idIdx, nameIdx, scoreIdx, explIdx, copyIdx, priceIdx, catIdx := -1, -1, -1, -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "name"):
			nameIdx = first(nameIdx, i)
		case strings.Contains(l, "score") || strings.Contains(l, "confidence"):
			scoreIdx = first(scoreIdx, i)
		case strings.Contains(l, "explan"):
			explIdx = first(explIdx, i)
		case strings.Contains(l, "marketing") || strings.Contains(l, "copy"):
			copyIdx = first(copyIdx, i)
		case strings.Contains(l, "price"):
			priceIdx = first(priceIdx, i)
		case strings.Contains(l, "categ"):
			catIdx = first(catIdx, i)
		case strings.Contains(l, "id"):
			idIdx = first(idIdx, i)
		}
	}

	var out []types.Recommendation
	seen := map[int]bool{}
	for n, r := range rows[1:] {
		rec := types.Recommendation{
			ProductID:     atoi(cell(r, idIdx)),
			ProductName:   cell(r, nameIdx),
			Explanation:   cell(r, explIdx),
			MarketingCopy: cell(r, copyIdx),
			Category:      cell(r, catIdx),
		}
		score, errScore := strconv.ParseFloat(cell(r, scoreIdx), 64)
		price, errPrice := strconv.ParseFloat(strings.TrimPrefix(cell(r, priceIdx), "$"), 64)
		if errScore != nil || errPrice != nil {
			log.WithFields(logrus.Fields{"sheet": SheetRecommendations, "row": n + 2}).Warn("skipping row with unparseable score or price")
			continue
		}
		rec.Score, rec.Price = score, price
		if err := validation.Struct(&rec); err != nil {
			log.WithFields(logrus.Fields{"sheet": SheetRecommendations, "row": n + 2, "error": err.Error()}).Warn("skipping row")
			continue
		}
		if seen[rec.ProductID] {
			log.WithFields(logrus.Fields{"sheet": SheetRecommendations, "row": n + 2, "product_id": rec.ProductID}).Warn("skipping row with duplicate product id")
			continue
		}
		seen[rec.ProductID] = true
		out = append(out, rec)
	}
	return out
}

func parsePerformance(rows [][]string) []types.PerformancePoint {
	nameIdx, recIdx, clickIdx, buyIdx := -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "recommend"):
			recIdx = first(recIdx, i)
		case strings.Contains(l, "click"):
			clickIdx = first(clickIdx, i)
		case strings.Contains(l, "purchase"):
			buyIdx = first(buyIdx, i)
		case strings.Contains(l, "name") || strings.Contains(l, "day"):
			nameIdx = first(nameIdx, i)
		}
	}

	var out []types.PerformancePoint
	for _, r := range rows[1:] {
		name := cell(r, nameIdx)
		if name == "" {
			continue
		}
		out = append(out, types.PerformancePoint{
			Name:            name,
			Recommendations: atoi(cell(r, recIdx)),
			Clicks:          atoi(cell(r, clickIdx)),
			Purchases:       atoi(cell(r, buyIdx)),
		})
	}
	return out
}

func first(cur, i int) int {
	if cur == -1 {
		return i
	}
	return cur
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// numeric cells sometimes come back as "3.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

// splitList accepts "a, b" or "a; b".
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
