package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/KaramelBytes/salesloom-cli/internal/sales"
)

// ColumnWeekday is a derived column holding the weekday name of Date.
const ColumnWeekday = "Weekday"

// DataFrame is a read-only table exposed to scripts as `df`. Every
// operation returns a new value; the underlying rows are never modified,
// so one DataFrame can back concurrent runs.
type DataFrame struct {
	cols []string
	rows [][]starlark.Value
}

var (
	_ starlark.Mapping  = (*DataFrame)(nil)
	_ starlark.Sequence = (*DataFrame)(nil)
	_ starlark.HasAttrs = (*DataFrame)(nil)
)

// FromDataset converts a cleaned dataset. Dates become "YYYY-MM-DD" strings,
// whole quantities ints, money floats and missing values None.
func FromDataset(ds *sales.Dataset) *DataFrame {
	cols := append(sales.Fields(), ColumnWeekday)
	f := &DataFrame{cols: cols, rows: make([][]starlark.Value, 0, ds.Len())}
	for _, r := range ds.Records() {
		price := starlark.Value(starlark.None)
		if r.UnitPrice.Valid {
			price = starlark.Float(r.UnitPrice.Decimal.InexactFloat64())
		}
		f.rows = append(f.rows, []starlark.Value{
			starlark.String(sales.FormatDate(r.Date)),
			optString(r.OrderID),
			starlark.String(r.Product),
			decimalValue(r.Quantity),
			price,
			optString(r.State),
			starlark.Float(r.Total.InexactFloat64()),
			starlark.String(r.Date.Weekday().String()),
		})
	}
	return f
}

func optString(s string) starlark.Value {
	if s == "" {
		return starlark.None
	}
	return starlark.String(s)
}

func decimalValue(d decimal.Decimal) starlark.Value {
	if d.IsInteger() {
		return starlark.MakeInt64(d.IntPart())
	}
	return starlark.Float(d.InexactFloat64())
}

// Columns returns the column names.
func (f *DataFrame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// ColumnTypes describes the script-side type of each column.
func (f *DataFrame) ColumnTypes() map[string]string {
	return map[string]string{
		sales.FieldDate:     "string (YYYY-MM-DD, or with time and offset)",
		sales.FieldOrderID:  "string or None",
		sales.FieldProduct:  "string",
		sales.FieldQuantity: "int (float if fractional)",
		sales.FieldPrice:    "float or None",
		sales.FieldState:    "string or None",
		sales.FieldTotal:    "float",
		ColumnWeekday:       "string (Monday..Sunday)",
	}
}

func (f *DataFrame) String() string        { return fmt.Sprintf("<DataFrame %d rows x %d columns>", len(f.rows), len(f.cols)) }
func (f *DataFrame) Type() string          { return "DataFrame" }
func (f *DataFrame) Freeze()               {}
func (f *DataFrame) Truth() starlark.Bool  { return len(f.rows) > 0 }
func (f *DataFrame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: DataFrame") }
func (f *DataFrame) Len() int              { return len(f.rows) }

func (f *DataFrame) Iterate() starlark.Iterator {
	return &rowIterator{f: f}
}

type rowIterator struct {
	f *DataFrame
	i int
}

func (it *rowIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.f.rows) {
		return false
	}
	*p = it.f.row(it.i)
	it.i++
	return true
}

func (it *rowIterator) Done() {}

// Get implements df["Column"].
func (f *DataFrame) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("DataFrame index must be a column name string, got %s", k.Type())
	}
	s, err := f.column(name)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (f *DataFrame) colIndex(name string) (int, error) {
	for i, c := range f.cols {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("KeyError: no column %q; columns are %s", name, strings.Join(f.cols, ", "))
}

func (f *DataFrame) column(name string) (*Series, error) {
	ci, err := f.colIndex(name)
	if err != nil {
		return nil, err
	}
	vals := make([]starlark.Value, len(f.rows))
	for i, r := range f.rows {
		vals[i] = r[ci]
	}
	return &Series{name: name, vals: vals}, nil
}

func (f *DataFrame) row(i int) *starlark.Dict {
	d := starlark.NewDict(len(f.cols))
	for j, c := range f.cols {
		_ = d.SetKey(starlark.String(c), f.rows[i][j])
	}
	return d
}

// Head returns the first n rows.
func (f *DataFrame) Head(n int) *DataFrame {
	return f.subset(headIndex(len(f.rows), n))
}

func (f *DataFrame) subset(idx []int) *DataFrame {
	out := &DataFrame{cols: f.cols, rows: make([][]starlark.Value, len(idx))}
	for k, i := range idx {
		out.rows[k] = f.rows[i]
	}
	return out
}

var frameMethods = map[string]*starlark.Builtin{
	"head":        starlark.NewBuiltin("head", frameHead),
	"rows":        starlark.NewBuiltin("rows", frameRows),
	"filter":      starlark.NewBuiltin("filter", frameFilter),
	"where":       starlark.NewBuiltin("where", frameWhere),
	"sort_values": starlark.NewBuiltin("sort_values", frameSortValues),
	"groupby":     starlark.NewBuiltin("groupby", frameGroupBy),
}

func (f *DataFrame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		vals := make([]starlark.Value, len(f.cols))
		for i, c := range f.cols {
			vals[i] = starlark.String(c)
		}
		return starlark.NewList(vals), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(len(f.rows)), starlark.MakeInt(len(f.cols))}, nil
	}
	if m, ok := frameMethods[name]; ok {
		return m.BindReceiver(f), nil
	}
	return nil, nil
}

func (f *DataFrame) AttrNames() []string {
	names := []string{"columns", "shape"}
	for n := range frameMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func frameHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	return b.Receiver().(*DataFrame).Head(n), nil
}

func frameRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	f := b.Receiver().(*DataFrame)
	out := make([]starlark.Value, len(f.rows))
	for i := range f.rows {
		out[i] = f.row(i)
	}
	return starlark.NewList(out), nil
}

func frameFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn); err != nil {
		return nil, err
	}
	f := b.Receiver().(*DataFrame)
	var keep []int
	for i := range f.rows {
		v, err := starlark.Call(thread, fn, starlark.Tuple{f.row(i)}, nil)
		if err != nil {
			return nil, err
		}
		if v.Truth() {
			keep = append(keep, i)
		}
	}
	return f.subset(keep), nil
}

func frameWhere(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	var want starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col, "value", &want); err != nil {
		return nil, err
	}
	f := b.Receiver().(*DataFrame)
	ci, err := f.colIndex(col)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i, r := range f.rows {
		eq, err := starlark.Equal(r[ci], want)
		if err != nil {
			return nil, err
		}
		if eq {
			keep = append(keep, i)
		}
	}
	return f.subset(keep), nil
}

func frameSortValues(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by string
	ascending := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "ascending?", &ascending); err != nil {
		return nil, err
	}
	f := b.Receiver().(*DataFrame)
	ci, err := f.colIndex(by)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(f.rows))
	for i := range idx {
		idx[i] = i
	}
	if err := sortIndex(idx, func(i int) starlark.Value { return f.rows[i][ci] }, ascending); err != nil {
		return nil, err
	}
	return f.subset(idx), nil
}

func frameGroupBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by); err != nil {
		return nil, err
	}
	return newGroupBy(b.Receiver().(*DataFrame), by)
}

// sortIndex stable-sorts idx by the values at, placing None last in either
// direction. The first comparison error is returned.
func sortIndex(idx []int, at func(int) starlark.Value, ascending bool) error {
	var cmpErr error
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := at(idx[a]), at(idx[b])
		if x == starlark.None || y == starlark.None {
			return y == starlark.None && x != starlark.None
		}
		op := syntax.LT
		if !ascending {
			op = syntax.GT
		}
		less, err := starlark.Compare(op, x, y)
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return less
	})
	return cmpErr
}

func headIndex(n, limit int) []int {
	if limit < 0 {
		limit = 0
	}
	if limit > n {
		limit = n
	}
	idx := make([]int, limit)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
