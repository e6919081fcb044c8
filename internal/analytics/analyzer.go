package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KaramelBytes/salesloom-cli/internal/sales"
)

// Analyzer computes aggregates over a cleaned dataset. It never mutates the
// dataset and is safe for concurrent use.
type Analyzer struct {
	ds *sales.Dataset
}

// New returns an Analyzer over ds. A nil dataset behaves as empty.
func New(ds *sales.Dataset) *Analyzer {
	if ds == nil {
		ds = sales.NewDataset(nil)
	}
	return &Analyzer{ds: ds}
}

// Dataset returns the analyzed dataset.
func (a *Analyzer) Dataset() *sales.Dataset { return a.ds }

// Ranked is one group of a ranked series.
type Ranked struct {
	Key   string          `json:"key"`
	Value decimal.Decimal `json:"value"`
}

// DailyPoint is the sales total of one calendar day.
type DailyPoint struct {
	Day   time.Time       `json:"day"`
	Total decimal.Decimal `json:"total"`
}

// Summary holds the headline figures of a dataset.
type Summary struct {
	TotalSales decimal.Decimal `json:"total_sales"`
	// OrderCount is the number of line records, not distinct order ids.
	OrderCount     int             `json:"order_count"`
	AvgOrderValue  decimal.Decimal `json:"avg_order_value"`
	UniqueProducts int             `json:"unique_products"`
	UniqueStates   int             `json:"unique_states"`
	DateRangeDays  int             `json:"date_range_days"`
	AvgDailySales  decimal.Decimal `json:"avg_daily_sales"`
}

// TopProducts ranks products by units sold, descending, and keeps the first n.
// Ties keep the order in which products first appear.
func (a *Analyzer) TopProducts(n int) []Ranked {
	return head(a.groupBy(productKey, quantityValue, false), n)
}

// ProductRevenue ranks products by revenue, descending, and keeps the first n.
func (a *Analyzer) ProductRevenue(n int) []Ranked {
	return head(a.groupBy(productKey, totalValue, false), n)
}

// TotalSales is the sum of all line totals.
func (a *Analyzer) TotalSales() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range a.ds.Records() {
		sum = sum.Add(r.Total)
	}
	return sum
}

// SalesByState ranks states by revenue, descending. Records without a state
// are not counted.
func (a *Analyzer) SalesByState() []Ranked {
	return a.groupBy(stateKey, totalValue, true)
}

// DailyTrend sums totals per calendar date, ascending.
func (a *Analyzer) DailyTrend() []DailyPoint {
	out := []DailyPoint{}
	idx := map[time.Time]int{}
	for _, r := range a.ds.Records() {
		d := sales.Day(r.Date)
		i, ok := idx[d]
		if !ok {
			i = len(out)
			idx[d] = i
			out = append(out, DailyPoint{Day: d, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(r.Total)
	}
	// records are date-sorted but mixed zones can reorder calendar days
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// WeekdayPattern sums totals per day of week, Monday first. Days without
// sales are omitted.
func (a *Analyzer) WeekdayPattern() []Ranked {
	var sums [7]decimal.Decimal
	var seen [7]bool
	for _, r := range a.ds.Records() {
		i := mondayIndex(r.Date.Weekday())
		sums[i] = sums[i].Add(r.Total)
		seen[i] = true
	}
	out := []Ranked{}
	for i := range sums {
		if seen[i] {
			out = append(out, Ranked{Key: weekdayOrder[i].String(), Value: sums[i]})
		}
	}
	return out
}

// SummaryStats computes the headline figures. AvgOrderValue is zero for an
// empty dataset; AvgDailySales divides by at least one day.
func (a *Analyzer) SummaryStats() Summary {
	total := a.TotalSales()
	s := Summary{TotalSales: total, OrderCount: a.ds.Len(), AvgOrderValue: decimal.Zero, AvgDailySales: decimal.Zero}
	if s.OrderCount == 0 {
		return s
	}
	s.AvgOrderValue = total.Div(decimal.NewFromInt(int64(s.OrderCount)))

	products, states := map[string]struct{}{}, map[string]struct{}{}
	for _, r := range a.ds.Records() {
		products[r.Product] = struct{}{}
		if r.State != "" {
			states[r.State] = struct{}{}
		}
	}
	s.UniqueProducts, s.UniqueStates = len(products), len(states)

	first, last, _ := a.ds.DateRange()
	s.DateRangeDays = sales.DaysBetween(first, last)
	days := s.DateRangeDays
	if days < 1 {
		days = 1
	}
	s.AvgDailySales = total.Div(decimal.NewFromInt(int64(days)))
	return s
}

var weekdayOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func mondayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }

func productKey(r sales.Record) string { return r.Product }
func stateKey(r sales.Record) string   { return r.State }

func quantityValue(r sales.Record) decimal.Decimal { return r.Quantity }
func totalValue(r sales.Record) decimal.Decimal    { return r.Total }

// groupBy sums value per key in first-seen order, then stable-sorts descending.
func (a *Analyzer) groupBy(key func(sales.Record) string, value func(sales.Record) decimal.Decimal, skipEmpty bool) []Ranked {
	out := []Ranked{}
	idx := map[string]int{}
	for _, r := range a.ds.Records() {
		k := key(r)
		if skipEmpty && k == "" {
			continue
		}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Ranked{Key: k, Value: decimal.Zero})
		}
		out[i].Value = out[i].Value.Add(value(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value.GreaterThan(out[j].Value) })
	return out
}

func head(rs []Ranked, n int) []Ranked {
	if n >= 0 && n < len(rs) {
		return rs[:n]
	}
	return rs
}
