package analytics

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money formats an amount as US dollars with thousands separators.
func Money(d decimal.Decimal) string {
	v := d.Round(2).InexactFloat64()
	if v < 0 {
		return printer.Sprintf("-$%.2f", -v)
	}
	return printer.Sprintf("$%.2f", v)
}

// Report is the full descriptive analysis of one dataset.
type Report struct {
	Name           string       `json:"name"`
	Summary        Summary      `json:"summary"`
	TopProducts    []Ranked     `json:"top_products"`
	ProductRevenue []Ranked     `json:"product_revenue"`
	SalesByState   []Ranked     `json:"sales_by_state"`
	DailyTrend     []DailyPoint `json:"daily_trend"`
	WeekdayPattern []Ranked     `json:"weekday_pattern"`
	Insights       []string     `json:"insights"`
	Warnings       []string     `json:"warnings"`
}

// Build assembles a Report with rankings cut to topN entries. Every list
// field is non-nil so JSON output carries [] rather than null.
func (a *Analyzer) Build(name string, topN int, warnings []string) *Report {
	r := &Report{
		Name:           name,
		Summary:        a.SummaryStats(),
		TopProducts:    a.TopProducts(topN),
		ProductRevenue: a.ProductRevenue(topN),
		SalesByState:   head(a.SalesByState(), topN),
		DailyTrend:     a.DailyTrend(),
		WeekdayPattern: a.WeekdayPattern(),
		Insights:       a.DetectAnomalies(),
		Warnings:       warnings,
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	return r
}

// Markdown renders the report for terminal output or a saved file.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Sales analysis")
	if r.Name != "" {
		fmt.Fprintf(&b, ": %s", r.Name)
	}
	b.WriteString("\n\n")

	s := r.Summary
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total sales: %s\n", Money(s.TotalSales))
	b.WriteString(printer.Sprintf("- Orders: %d\n", s.OrderCount))
	fmt.Fprintf(&b, "- Average order value: %s\n", Money(s.AvgOrderValue))
	fmt.Fprintf(&b, "- Products: %d, states: %d\n", s.UniqueProducts, s.UniqueStates)
	fmt.Fprintf(&b, "- Date range: %d days (%s per day)\n\n", s.DateRangeDays, Money(s.AvgDailySales))

	if len(r.Warnings) > 0 {
		b.WriteString("## Data quality\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}
	if len(r.Insights) > 0 {
		b.WriteString("## Insights\n\n")
		for _, in := range r.Insights {
			fmt.Fprintf(&b, "- %s\n", in)
		}
		b.WriteString("\n")
	}

	writeTable(&b, "Top products (units)", "Product", "Units", r.TopProducts, func(d decimal.Decimal) string { return d.String() })
	writeTable(&b, "Top products (revenue)", "Product", "Revenue", r.ProductRevenue, Money)
	writeTable(&b, "Sales by state", "State", "Revenue", r.SalesByState, Money)
	writeTable(&b, "Sales by weekday", "Weekday", "Revenue", r.WeekdayPattern, Money)

	if len(r.DailyTrend) > 0 {
		b.WriteString("## Daily trend\n\n| Date | Revenue |\n|---|---:|\n")
		for _, p := range r.DailyTrend {
			fmt.Fprintf(&b, "| %s | %s |\n", p.Day.Format("2006-01-02"), Money(p.Total))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeTable(b *strings.Builder, title, keyCol, valCol string, rows []Ranked, format func(decimal.Decimal) string) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n| %s | %s |\n|---|---:|\n", title, keyCol, valCol)
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", safeCell(r.Key), format(r.Value))
	}
	b.WriteString("\n")
}

func safeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
