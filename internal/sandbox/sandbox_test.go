package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/salesloom-cli/internal/sales"
)

func testFrame() *DataFrame {
	day := func(s string) time.Time {
		t, _ := time.Parse("2006-01-02", s)
		return t
	}
	return FromDataset(sales.NewDataset([]sales.Record{
		{Date: day("2024-11-18"), OrderID: "1001", Product: "Serum", Quantity: decimal.NewFromInt(2),
			UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("29.99")), State: "CA", Total: decimal.RequireFromString("59.98")},
		{Date: day("2024-11-19"), OrderID: "1002", Product: "Cream", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("40.00")), State: "NY", Total: decimal.RequireFromString("40.00")},
		{Date: day("2024-11-20"), OrderID: "1003", Product: "Serum", Quantity: decimal.NewFromInt(1),
			State: "", Total: decimal.RequireFromString("29.99")},
	}))
}

func run(t *testing.T, code string) *Result {
	t.Helper()
	res, err := New(Options{}).Run(context.Background(), code, testFrame())
	require.NoError(t, err, code)
	return res
}

func TestSumIsExact(t *testing.T) {
	res := run(t, "result = df['Total'].sum()")
	assert.Equal(t, "129.97", res.Value)
	assert.Equal(t, "float", res.Type)

	assert.Equal(t, "4", run(t, `result = df["Quantity"].sum()`).Value)
	assert.Equal(t, "129.97", run(t, "result = sum([r['Total'] for r in df])").Value)
}

func TestSeriesAggregates(t *testing.T) {
	cases := map[string]string{
		"result = df['Price'].mean()":                "34.995",
		"result = df['Total'].max()":                 "59.98",
		"result = df['Price'].count()":               "2",
		"result = df['Customer State'].nunique()":    "2",
		"result = df['Product Name'].unique()":       `["Serum", "Cream"]`,
		"result = df['Product Name'].value_counts()": `{"Serum": 2, "Cream": 1}`,
		"result = df['Quantity'].median()":           "1.0",
		"result = len(df)":                           "3",
		"result = df.shape":                          "(3, 8)",
		"result = df['Weekday'].tolist()":            `["Monday", "Tuesday", "Wednesday"]`,
	}
	for code, want := range cases {
		assert.Equal(t, want, run(t, code).Value, code)
	}
}

func TestGroupBy(t *testing.T) {
	res := run(t, "result = df.groupby('Product Name')['Quantity'].sum()")
	assert.Equal(t, `{"Serum": 3, "Cream": 1}`, res.Value)

	// None keys are excluded
	res = run(t, "result = df.groupby('Customer State')['Total'].sum()")
	assert.Equal(t, `{"CA": 59.98, "NY": 40.0}`, res.Value)

	res = run(t, "result = df.groupby('Product Name').size()")
	assert.Equal(t, `{"Serum": 2, "Cream": 1}`, res.Value)
}

func TestFilterWhereSort(t *testing.T) {
	code := `
serum = df.where("Product Name", "Serum")
big = df.filter(lambda r: r["Total"] > 35)
ordered = df.sort_values("Total", ascending=False)
result = (len(serum), len(big), ordered["Order ID"].tolist(), ordered.head(1)["Total"][0])
`
	assert.Equal(t, `(2, 2, ["1001", "1002", "1003"], 59.98)`, run(t, code).Value)
}

func TestSeriesArithmetic(t *testing.T) {
	res := run(t, "result = (df['Quantity'] * df['Price']).sum()")
	assert.Equal(t, "99.98", res.Value)
	res = run(t, "result = (df['Total'] / 2).tolist()")
	assert.Equal(t, "[29.99, 20.0, 14.995]", res.Value)
}

func TestPrintIsCaptured(t *testing.T) {
	res := run(t, "print('rows', len(df))\nresult = 'ok'")
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, "rows 3\n", res.Output)
}

func TestControlFlowAndMath(t *testing.T) {
	code := `
best = None
for r in df:
    if best == None or r["Total"] > best["Total"]:
        best = r
i = 0
while i < 3:
    i += 1
result = "%s %d %d" % (best["Product Name"], i, math.floor(round(2.5)))
`
	assert.Equal(t, "Serum 3 3", run(t, code).Value)
}

func TestMissingResult(t *testing.T) {
	_, err := New(Options{}).Run(context.Background(), "x = df['Total'].sum()", testFrame())
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestErrorsAreExecutionErrors(t *testing.T) {
	cases := map[string]string{
		"result = df['Revenue'].sum()":      "no column",
		"result = ":                         "answer.star",
		"import pandas as pd":               "answer.star",
		"result = df['Product Name'].sum()": "not numeric",
		"load('os.star', 'system')":         "load",
		"result = open('/etc/passwd')":      "undefined: open",
	}
	for code, want := range cases {
		_, err := New(Options{}).Run(context.Background(), code, testFrame())
		var ee *ExecutionError
		require.ErrorAs(t, err, &ee, code)
		assert.Contains(t, ee.Error(), want, code)
	}
}

func TestStepBudget(t *testing.T) {
	_, err := New(Options{MaxSteps: 10_000}).Run(context.Background(), "while True:\n    pass\n", testFrame())
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, strings.ToLower(ee.Error()), "too many steps")
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Options{MaxSteps: 1 << 62}).Run(ctx, "while True:\n    pass\n", testFrame())
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Error(), "deadline exceeded")
}

func TestOutputIsBounded(t *testing.T) {
	res, err := New(Options{MaxOutputBytes: 32}).Run(context.Background(),
		"for i in range(100):\n    print('line', i)\nresult = 1", testFrame())
	require.NoError(t, err)
	assert.Contains(t, res.Output, "output truncated")
	assert.Less(t, len(res.Output), 100)
}

func TestOversizedResultIsRejected(t *testing.T) {
	for _, code := range []string{
		`result = "x" * 100000`,
		"result = [i for i in range(50000)]",
	} {
		_, err := New(Options{}).Run(context.Background(), code, testFrame())
		var ee *ExecutionError
		require.ErrorAs(t, err, &ee, code)
		assert.ErrorIs(t, err, ErrResultTooLarge, code)
		assert.Contains(t, ee.Message, "limit 65536", code)
	}

	res, err := New(Options{MaxValueBytes: 1 << 20}).Run(context.Background(), `result = "x" * 100000`, testFrame())
	require.NoError(t, err)
	assert.Len(t, res.Value, 100000)
}

func TestRenderDataFrame(t *testing.T) {
	res := run(t, "result = df.head(1)")
	assert.True(t, strings.HasPrefix(res.Value, "Date | Order ID | Product Name"))
	assert.Contains(t, res.Value, "2024-11-18 | 1001 | Serum | 2 | 29.99 | CA | 59.98 | Monday")
}
