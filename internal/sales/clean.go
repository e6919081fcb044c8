package sales

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Data-quality policy. Violations produce warnings, never errors.
const (
	// MaxDateSpanDays is the widest date range reported without suggesting
	// weekly bucketing.
	MaxDateSpanDays = 31
	// MaxMissingPercent is the per-column null rate above which a warning is raised.
	MaxMissingPercent = 5.0
)

// Warning texts.
const (
	WarnNegativeQuantity = "Found negative quantities - these may be returns/refunds"
	WarnNegativeTotal    = "Found negative totals - these may be refunds"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"01-02-06",
	"1/2/06",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate parses a date cell. It accepts ISO dates and datetimes, Shopify
// "Created at" timestamps, US month-first dates and Excel serial day numbers.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	// Excel stores dates as days since 1899-12-30; values beyond ~2173 are not dates.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1 && f < 100000 {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t.UTC().Round(time.Second), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell into a decimal. Currency symbols,
// non-breaking spaces and thousands separators are removed first. When both
// ',' and '.' occur the last one is the decimal separator; a lone ',' is a
// thousands separator only when exactly three digits follow it.
func ParseNumber(s string) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", "\u00a0", "", " ", "").Replace(raw)
	if raw == "" {
		return decimal.Decimal{}, false
	}
	switch strings.ToLower(raw) {
	case "nan", "null", "none", "n/a", "-":
		return decimal.Decimal{}, false
	}

	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	case cpos >= 0:
		if strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3 {
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Clean types a canonical table: dates and numbers are parsed (unparsable
// cells become null), rows without a date, product or total are dropped,
// missing quantities default to 1 and the result is sorted by date.
// It never fails; data problems are returned as warnings.
func Clean(t *RawTable) (*Dataset, []string) {
	col := make(map[string]int, len(canonicalFields))
	for _, f := range canonicalFields {
		col[f] = t.Column(f)
	}

	records := make([]Record, 0, len(t.Rows))
	dropped := 0
	for i := range t.Rows {
		date, okDate := ParseDate(t.Cell(i, col[FieldDate]))
		product := strings.TrimSpace(t.Cell(i, col[FieldProduct]))
		total, okTotal := ParseNumber(t.Cell(i, col[FieldTotal]))
		if !okDate || product == "" || !okTotal {
			dropped++
			continue
		}
		qty, okQty := ParseNumber(t.Cell(i, col[FieldQuantity]))
		if !okQty {
			qty = decimal.NewFromInt(1)
		}
		var price decimal.NullDecimal
		if p, ok := ParseNumber(t.Cell(i, col[FieldPrice])); ok {
			price = decimal.NewNullDecimal(p)
		}
		records = append(records, Record{
			Date:      date,
			OrderID:   strings.TrimSpace(t.Cell(i, col[FieldOrderID])),
			Product:   product,
			Quantity:  qty,
			UnitPrice: price,
			State:     strings.TrimSpace(t.Cell(i, col[FieldState])),
			Total:     total,
		})
	}

	ds := NewDataset(records)
	var warnings []string
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("Dropped %d rows with a missing or unreadable Date, Product Name or Total", dropped))
	}
	return ds, append(warnings, QualityWarnings(ds)...)
}

// QualityWarnings evaluates the data-quality checks on a cleaned dataset.
func QualityWarnings(ds *Dataset) []string {
	var out []string
	if ds.Len() == 0 {
		return out
	}
	var negQty, negTotal bool
	var noOrder, noPrice, noState int
	for _, r := range ds.records {
		negQty = negQty || r.Quantity.IsNegative()
		negTotal = negTotal || r.Total.IsNegative()
		if r.OrderID == "" {
			noOrder++
		}
		if !r.UnitPrice.Valid {
			noPrice++
		}
		if r.State == "" {
			noState++
		}
	}
	if negQty {
		out = append(out, WarnNegativeQuantity)
	}
	if negTotal {
		out = append(out, WarnNegativeTotal)
	}
	first, last, _ := ds.DateRange()
	if days := DaysBetween(first, last); days > MaxDateSpanDays {
		out = append(out, fmt.Sprintf("Data spans %d days - consider analyzing by week", days))
	}
	n := float64(ds.Len())
	for _, c := range []struct {
		field string
		count int
	}{{FieldOrderID, noOrder}, {FieldPrice, noPrice}, {FieldState, noState}} {
		if pct := float64(c.count) / n * 100; pct > MaxMissingPercent {
			out = append(out, fmt.Sprintf("Column '%s' has %.1f%% missing values", c.field, pct))
		}
	}
	return out
}

// DaysBetween returns the whole days elapsed from first to last (floored).
func DaysBetween(first, last time.Time) int {
	return int(last.Sub(first).Hours() / 24)
}

// Process runs the normalizer and cleaner: raw file table in, typed dataset
// and ordered warnings out. Only a *SchemaError aborts.
func Process(raw *RawTable, aliases AliasTable) (*Dataset, Mapping, []string, error) {
	table, m, err := Normalize(raw, aliases)
	if err != nil {
		return nil, m, nil, err
	}
	ds, warnings := Clean(table)
	if len(m.Conflicts) > 0 {
		pre := make([]string, 0, len(m.Conflicts)+len(warnings))
		for _, c := range m.Conflicts {
			pre = append(pre, c.String())
		}
		warnings = append(pre, warnings...)
	}
	return ds, m, warnings, nil
}
