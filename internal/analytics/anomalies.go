package analytics

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/salesloom-cli/internal/sales"
)

// Insight thresholds.
const (
	// PeakStdDevs is how far from the daily mean a day must fall to be a peak or low.
	PeakStdDevs = 2.0
	// ProductDominancePercent is the share of units above which the top product is flagged.
	ProductDominancePercent = 30.0
	// StateConcentrationPercent is the share of revenue above which the top state is flagged.
	StateConcentrationPercent = 40.0
	HighOrderValue            = 100.0
	LowOrderValue             = 20.0
)

// DetectAnomalies returns human-readable insights, in rule order: peak and
// low days, product dominance, state concentration, order value. The slice
// is empty, never nil, when nothing stands out.
func (a *Analyzer) DetectAnomalies() []string {
	out := []string{}
	if a.ds.Len() == 0 {
		return out
	}
	out = append(out, a.dailyOutliers()...)

	if top := a.TopProducts(1); len(top) == 1 {
		units := sumQuantity(a.ds)
		if units > 0 {
			q := top[0].Value.InexactFloat64()
			if pct := q / units * 100; pct > ProductDominancePercent {
				out = append(out, fmt.Sprintf("'%s' dominates sales with %.0f%% of total units sold (%d units)",
					top[0].Key, pct, top[0].Value.IntPart()))
			}
		}
	}

	total := a.TotalSales().InexactFloat64()
	if states := a.SalesByState(); len(states) > 0 && total > 0 {
		amt := states[0].Value.InexactFloat64()
		if pct := amt / total * 100; pct > StateConcentrationPercent {
			out = append(out, fmt.Sprintf("%s accounts for %.0f%% of total sales (%s)", states[0].Key, pct, Money(states[0].Value)))
		}
	}

	aov := total / float64(a.ds.Len())
	switch {
	case aov > HighOrderValue:
		out = append(out, fmt.Sprintf("High average order value: $%.2f per order", aov))
	case aov < LowOrderValue:
		out = append(out, fmt.Sprintf("Low average order value: $%.2f - consider upselling strategies", aov))
	}
	return out
}

// dailyOutliers reports the highest day above mean+k·σ and the lowest day
// below mean-k·σ, using the sample standard deviation of daily totals.
func (a *Analyzer) dailyOutliers() []string {
	trend := a.DailyTrend()
	if len(trend) < 2 {
		return nil
	}
	vals := make([]float64, len(trend))
	for i, p := range trend {
		vals[i] = p.Total.InexactFloat64()
	}
	mean, std := meanStd(vals)
	if std <= 0 {
		return nil
	}
	hi, lo := mean+PeakStdDevs*std, mean-PeakStdDevs*std
	best, worst := -1, -1
	for i, v := range vals {
		if v > hi && (best < 0 || v > vals[best]) {
			best = i
		}
		if v < lo && (worst < 0 || v < vals[worst]) {
			worst = i
		}
	}
	var out []string
	if best >= 0 {
		out = append(out, fmt.Sprintf("Peak sales day: %s (%s) - %.0f%% above average",
			trend[best].Day.Format("2006-01-02"), Money(trend[best].Total), (vals[best]/mean-1)*100))
	}
	if worst >= 0 {
		out = append(out, fmt.Sprintf("Low sales day: %s (%s) - %.0f%% below average",
			trend[worst].Day.Format("2006-01-02"), Money(trend[worst].Total), (1-vals[worst]/mean)*100))
	}
	return out
}

func meanStd(vals []float64) (mean, std float64) {
	n := float64(len(vals))
	for _, v := range vals {
		mean += v
	}
	mean /= n
	if len(vals) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / (n - 1))
}

func sumQuantity(ds *sales.Dataset) float64 {
	var sum float64
	for _, r := range ds.Records() {
		sum += r.Quantity.InexactFloat64()
	}
	return sum
}
