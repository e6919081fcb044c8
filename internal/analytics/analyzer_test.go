package analytics

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/salesloom-cli/internal/sales"
)

func rec(day, product, state string, qty int64, total string) sales.Record {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return sales.Record{
		Date:     d,
		Product:  product,
		State:    state,
		Quantity: decimal.NewFromInt(qty),
		Total:    decimal.RequireFromString(total),
	}
}

func scenario() *Analyzer {
	return New(sales.NewDataset([]sales.Record{
		rec("2024-11-18", "Serum", "CA", 2, "59.98"),
		rec("2024-11-19", "Cream", "NY", 1, "40.00"),
	}))
}

func TestEndToEndScenario(t *testing.T) {
	a := scenario()
	assert.Equal(t, "99.98", a.TotalSales().String())

	s := a.SummaryStats()
	assert.Equal(t, 2, s.OrderCount)
	assert.True(t, s.AvgOrderValue.Equal(decimal.RequireFromString("49.99")))
	assert.Equal(t, 2, s.UniqueProducts)
	assert.Equal(t, 2, s.UniqueStates)
	assert.Equal(t, 1, s.DateRangeDays)
	assert.Equal(t, "99.98", s.AvgDailySales.String())

	top := a.TopProducts(1)
	require.Len(t, top, 1)
	assert.Equal(t, "Serum", top[0].Key)
	assert.Equal(t, "2", top[0].Value.String())

	states := a.SalesByState()
	require.Len(t, states, 2)
	assert.Equal(t, "CA", states[0].Key)
	assert.Equal(t, "59.98", states[0].Value.String())
	assert.Equal(t, "NY", states[1].Key)
	assert.Equal(t, "40", states[1].Value.String())
}

func TestSummaryStatsEmpty(t *testing.T) {
	s := New(nil).SummaryStats()
	assert.Equal(t, 0, s.OrderCount)
	assert.True(t, s.AvgOrderValue.IsZero())
	assert.True(t, s.TotalSales.IsZero())
}

func TestReportListsEncodeAsEmptyArrays(t *testing.T) {
	for name, a := range map[string]*Analyzer{
		"empty":     New(nil),
		"no states": New(sales.NewDataset([]sales.Record{rec("2024-11-18", "Serum", "", 1, "50")})),
	} {
		b, err := json.Marshal(a.Build(name, 10, nil))
		require.NoError(t, err)
		var got map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, "[]", string(got["sales_by_state"]), name)
		assert.Equal(t, "[]", string(got["warnings"]), name)
		for _, k := range []string{"top_products", "product_revenue", "daily_trend", "weekday_pattern", "insights"} {
			assert.NotEqual(t, "null", string(got[k]), "%s: %s", name, k)
		}
	}
	assert.NotNil(t, New(nil).DetectAnomalies())
}

func TestAvgOrderValueIsTotalOverCount(t *testing.T) {
	a := New(sales.NewDataset([]sales.Record{
		rec("2024-11-18", "A", "CA", 1, "10"),
		rec("2024-11-18", "B", "CA", 1, "20"),
		rec("2024-11-18", "C", "CA", 1, "31"),
	}))
	s := a.SummaryStats()
	assert.True(t, s.AvgOrderValue.Mul(decimal.NewFromInt(3)).Round(8).Equal(s.TotalSales))
	assert.Equal(t, 0, s.DateRangeDays)
	assert.Equal(t, "61", s.AvgDailySales.String())
}

func TestTopProductsTiesKeepFirstSeenOrder(t *testing.T) {
	a := New(sales.NewDataset([]sales.Record{
		rec("2024-11-18", "Mask", "CA", 3, "30"),
		rec("2024-11-18", "Toner", "CA", 3, "30"),
		rec("2024-11-19", "Serum", "CA", 5, "50"),
	}))
	top := a.TopProducts(3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"Serum", "Mask", "Toner"}, []string{top[0].Key, top[1].Key, top[2].Key})
	assert.Len(t, a.TopProducts(10), 3)
}

func TestSalesByStateSkipsMissingState(t *testing.T) {
	a := New(sales.NewDataset([]sales.Record{
		rec("2024-11-18", "A", "", 1, "500"),
		rec("2024-11-18", "A", "TX", 1, "10"),
	}))
	states := a.SalesByState()
	require.Len(t, states, 1)
	assert.Equal(t, "TX", states[0].Key)
}

func TestDailyTrendGroupsByCalendarDate(t *testing.T) {
	ds := sales.NewDataset([]sales.Record{
		{Date: time.Date(2024, 11, 18, 9, 0, 0, 0, time.UTC), Product: "A", Quantity: decimal.NewFromInt(1), Total: decimal.NewFromInt(10)},
		{Date: time.Date(2024, 11, 18, 17, 30, 0, 0, time.UTC), Product: "A", Quantity: decimal.NewFromInt(1), Total: decimal.NewFromInt(5)},
		{Date: time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC), Product: "A", Quantity: decimal.NewFromInt(1), Total: decimal.NewFromInt(7)},
	})
	trend := New(ds).DailyTrend()
	require.Len(t, trend, 2)
	assert.Equal(t, "2024-11-18", trend[0].Day.Format("2006-01-02"))
	assert.Equal(t, "15", trend[0].Total.String())
	assert.Equal(t, "2024-11-20", trend[1].Day.Format("2006-01-02"))
}

func TestWeekdayPatternMondayFirst(t *testing.T) {
	a := New(sales.NewDataset([]sales.Record{
		rec("2024-11-17", "A", "CA", 1, "5"), // Sunday
		rec("2024-11-20", "A", "CA", 1, "7"), // Wednesday
		rec("2024-11-18", "A", "CA", 1, "3"), // Monday
		rec("2024-11-25", "A", "CA", 1, "4"), // Monday
	}))
	got := a.WeekdayPattern()
	require.Len(t, got, 3)
	assert.Equal(t, "Monday", got[0].Key)
	assert.Equal(t, "7", got[0].Value.String())
	assert.Equal(t, "Wednesday", got[1].Key)
	assert.Equal(t, "Sunday", got[2].Key)
}

func TestDetectAnomaliesEmptyAndSingle(t *testing.T) {
	assert.Empty(t, New(nil).DetectAnomalies())
	single := New(sales.NewDataset([]sales.Record{rec("2024-11-18", "Serum", "CA", 1, "50")}))
	for _, in := range single.DetectAnomalies() {
		assert.NotContains(t, in, "Peak")
		assert.NotContains(t, in, "Low sales day")
	}
}

func TestDetectAnomaliesSingleRecordOnlyFlagsDominance(t *testing.T) {
	a := New(sales.NewDataset([]sales.Record{rec("2024-11-18", "Serum", "", 1, "50")}))
	got := a.DetectAnomalies()
	assert.Equal(t, []string{"'Serum' dominates sales with 100% of total units sold (1 units)"}, got)
}

func TestDetectAnomaliesPeakDay(t *testing.T) {
	var rs []sales.Record
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		total := "100"
		if i == 4 {
			total = "1000"
		}
		rs = append(rs, sales.Record{
			Date:     start.AddDate(0, 0, i),
			Product:  fmt.Sprintf("P%d", i%5),
			State:    []string{"CA", "NY", "TX"}[i%3],
			Quantity: decimal.NewFromInt(1),
			Total:    decimal.RequireFromString(total),
		})
	}
	got := New(sales.NewDataset(rs)).DetectAnomalies()
	require.NotEmpty(t, got)
	assert.Equal(t, "Peak sales day: 2024-11-05 ($1,000.00) - 426% above average", got[0])
	assert.Contains(t, got, "High average order value: $190.00 per order")
	for _, in := range got {
		assert.NotContains(t, in, "Low sales day")
	}
}

func TestDetectAnomaliesLowDay(t *testing.T) {
	var rs []sales.Record
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		total := "1000"
		if i == 7 {
			total = "0"
		}
		rs = append(rs, sales.Record{
			Date:     start.AddDate(0, 0, i),
			Product:  fmt.Sprintf("P%d", i%4),
			State:    []string{"CA", "NY", "TX"}[i%3],
			Quantity: decimal.NewFromInt(1),
			Total:    decimal.RequireFromString(total),
		})
	}
	got := New(sales.NewDataset(rs)).DetectAnomalies()
	require.NotEmpty(t, got)
	assert.Equal(t, "Low sales day: 2024-11-08 ($0.00) - 100% below average", got[0])
}

func TestDetectAnomaliesConcentrationAndLowOrderValue(t *testing.T) {
	a := New(sales.NewDataset([]sales.Record{
		rec("2024-11-18", "Serum", "CA", 1, "10"),
		rec("2024-11-18", "Cream", "CA", 1, "10"),
		rec("2024-11-18", "Mask", "NY", 1, "5"),
		rec("2024-11-18", "Toner", "TX", 1, "5"),
	}))
	got := a.DetectAnomalies()
	assert.Equal(t, []string{
		"CA accounts for 67% of total sales ($20.00)",
		"Low average order value: $7.50 - consider upselling strategies",
	}, got)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", Money(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "$99.98", Money(decimal.RequireFromString("99.98")))
	assert.Equal(t, "-$12.00", Money(decimal.NewFromInt(-12)))
}

func TestReportMarkdown(t *testing.T) {
	md := scenario().Build("orders.csv", 5, []string{"Found negative totals - these may be refunds"}).Markdown()
	assert.Contains(t, md, "# Sales analysis: orders.csv")
	assert.Contains(t, md, "- Total sales: $99.98")
	assert.Contains(t, md, "| Serum | 2 |")
	assert.Contains(t, md, "| CA | $59.98 |")
	assert.Contains(t, md, "## Data quality")
}
