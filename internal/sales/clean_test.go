package sales

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonical(rows ...[]string) *RawTable {
	return &RawTable{Headers: Fields(), Rows: rows}
}

func TestCleanDropsUnrecoverableRowsAndSorts(t *testing.T) {
	raw := canonical(
		[]string{"2024-11-19", "1002", "Cream", "1", "40.00", "NY", "40.00"},
		[]string{"not a date", "1003", "Toner", "1", "10", "TX", "10"},
		[]string{"2024-11-18", "1001", "Serum", "2", "29.99", "CA", "59.98"},
		[]string{"2024-11-20", "1004", "", "1", "10", "TX", "10"},
		[]string{"2024-11-21", "1005", "Mask", "1", "10", "TX", "n/a"},
		[]string{"2024-11-17", "1000", "Mask", "", "12.5", "WA", "12.50"},
	)
	ds, warnings := Clean(raw)
	require.Equal(t, 3, ds.Len())

	recs := ds.Records()
	assert.Equal(t, "Mask", recs[0].Product)
	assert.Equal(t, "Serum", recs[1].Product)
	assert.Equal(t, "Cream", recs[2].Product)
	assert.True(t, recs[0].Quantity.Equal(decimal.NewFromInt(1)), "missing quantity defaults to 1")
	assert.Equal(t, time.Date(2024, 11, 17, 0, 0, 0, 0, time.UTC), recs[0].Date)
	require.NotEmpty(t, warnings)
	assert.Equal(t, "Dropped 3 rows with a missing or unreadable Date, Product Name or Total", warnings[0])
}

func TestCleanUnparsableNumbersBecomeNull(t *testing.T) {
	ds, _ := Clean(canonical(
		[]string{"2024-11-18", "1", "Serum", "two", "abc", "CA", "59.98"},
	))
	require.Equal(t, 1, ds.Len())
	r := ds.Record(0)
	assert.True(t, r.Quantity.Equal(decimal.NewFromInt(1)))
	assert.False(t, r.UnitPrice.Valid)
}

func TestQualityWarnings(t *testing.T) {
	rows := [][]string{
		{"2024-01-01", "1", "Serum", "-1", "10", "CA", "-10"},
		{"2024-03-01", "2", "Cream", "1", "10", "", "10"},
	}
	ds, warnings := Clean(canonical(rows...))
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{
		WarnNegativeQuantity,
		WarnNegativeTotal,
		"Data spans 60 days - consider analyzing by week",
		"Column 'Customer State' has 50.0% missing values",
	}, warnings)
}

func TestQualityWarningsMissingRateThreshold(t *testing.T) {
	var rows [][]string
	for i := 0; i < 20; i++ {
		state := "CA"
		if i == 0 {
			state = ""
		}
		rows = append(rows, []string{"2024-11-18", "1", "Serum", "1", "10", state, "10"})
	}
	// exactly 5% missing is not reported
	_, warnings := Clean(canonical(rows...))
	assert.Empty(t, warnings)

	rows[1][5] = ""
	_, warnings = Clean(canonical(rows...))
	assert.Equal(t, []string{"Column 'Customer State' has 10.0% missing values"}, warnings)
}

func TestCleanIsIdempotent(t *testing.T) {
	raw := canonical(
		[]string{"11/19/2024", "1002", "Cream", "1", "$40.00", "NY", "40.00"},
		[]string{"2024-11-18 10:15:42 -0500", "1001", "Serum", "2", "29.99", "CA", "59.98"},
		[]string{"45614", "", "Mask", "", "", "", "1,250.00"},
		[]string{"bad", "1004", "Toner", "1", "10", "TX", "10"},
		[]string{"2024-11-20 10:00:00.750", "1005", "Toner", "1", "10", "TX", "10"},
		[]string{"2024-11-20 10:00:00.25 -0500", "1006", "Toner", "1", "10", "TX", "10"},
	)
	first, _ := Clean(raw)
	second, warnings := Clean(first.Raw())
	assert.Equal(t, first.Raw(), second.Raw())
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	require.Equal(t, first.Len(), second.Len())
	for i := 0; i < first.Len(); i++ {
		assert.True(t, first.Record(i).Date.Equal(second.Record(i).Date), "row %d", i)
	}
	for _, w := range warnings {
		assert.NotContains(t, w, "Dropped")
	}
}

func TestParseNumber(t *testing.T) {
	cases := map[string]string{
		"59.98":     "59.98",
		"$1,234.50": "1234.5",
		"1.234,50":  "1234.5",
		"12,5":      "12.5",
		"1,250":     "1250",
		"-3":        "-3",
		"1e3":       "1000",
		" 7 ":       "7",
	}
	for in, want := range cases {
		got, ok := ParseNumber(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got.String(), in)
	}
	for _, in := range []string{"", "abc", "NaN", "n/a", "-"} {
		_, ok := ParseNumber(in)
		assert.False(t, ok, in)
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-11-18":          time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC),
		"11/18/2024":          time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC),
		"2024-11-18 10:15:42": time.Date(2024, 11, 18, 10, 15, 42, 0, time.UTC),
		"11-18-24":            time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC),
		"45614":               time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), "%s: got %v", in, got)
	}
	_, ok := ParseDate("tomorrow")
	assert.False(t, ok)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a, _ := Clean(canonical([]string{"2024-11-18", "1", "Serum", "2", "29.99", "CA", "59.98"}))
	b, _ := Clean(canonical([]string{"2024-11-18", "1", "Serum", "2", "29.99", "CA", "59.99"}))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	c, _ := Clean(canonical([]string{"2024-11-18 10:00:00.750", "1", "Serum", "2", "29.99", "CA", "59.98"}))
	d, _ := Clean(canonical([]string{"2024-11-18 10:00:00.250", "1", "Serum", "2", "29.99", "CA", "59.98"}))
	assert.NotEqual(t, c.Fingerprint(), d.Fingerprint(), "sub-second timestamps must not collide")
}

func TestFormatDateKeepsFractionalSeconds(t *testing.T) {
	ts := time.Date(2024, 11, 18, 10, 0, 0, 750_000_000, time.UTC)
	assert.Equal(t, "2024-11-18 10:00:00.75 +0000", FormatDate(ts))
	assert.Equal(t, "2024-11-18 10:00:00 +0000", FormatDate(ts.Truncate(time.Second)))
	assert.Equal(t, "2024-11-18", FormatDate(time.Date(2024, 11, 18, 0, 0, 0, 0, time.UTC)))
	back, ok := ParseDate(FormatDate(ts))
	require.True(t, ok)
	assert.True(t, ts.Equal(back))
}
