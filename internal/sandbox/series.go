package sandbox

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Series is one column of values. None marks a missing value and is skipped
// by every aggregate.
type Series struct {
	name string
	vals []starlark.Value
}

var (
	_ starlark.Indexable = (*Series)(nil)
	_ starlark.Sequence  = (*Series)(nil)
	_ starlark.HasAttrs  = (*Series)(nil)
	_ starlark.HasBinary = (*Series)(nil)
)

func (s *Series) String() string        { return fmt.Sprintf("<Series %q %d values>", s.name, len(s.vals)) }
func (s *Series) Type() string          { return "Series" }
func (s *Series) Freeze()               {}
func (s *Series) Truth() starlark.Bool  { return len(s.vals) > 0 }
func (s *Series) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Series") }
func (s *Series) Len() int              { return len(s.vals) }
func (s *Series) Index(i int) starlark.Value {
	return s.vals[i]
}

func (s *Series) Iterate() starlark.Iterator {
	return &valueIterator{vals: s.vals}
}

type valueIterator struct {
	vals []starlark.Value
	i    int
}

func (it *valueIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.vals) {
		return false
	}
	*p = it.vals[it.i]
	it.i++
	return true
}

func (it *valueIterator) Done() {}

// aggregate is a reduction shared by Series methods and grouped columns.
type aggregate func(s *Series) (starlark.Value, error)

var aggregates = map[string]aggregate{
	"sum":     (*Series).sum,
	"mean":    (*Series).mean,
	"min":     func(s *Series) (starlark.Value, error) { return s.extreme(syntax.LT) },
	"max":     func(s *Series) (starlark.Value, error) { return s.extreme(syntax.GT) },
	"count":   func(s *Series) (starlark.Value, error) { return starlark.MakeInt(len(s.present())), nil },
	"std":     (*Series).std,
	"median":  (*Series).median,
	"nunique": func(s *Series) (starlark.Value, error) { return starlark.MakeInt(len(s.distinct())), nil },
}

var seriesMethods = map[string]*starlark.Builtin{
	"unique":       starlark.NewBuiltin("unique", seriesUnique),
	"value_counts": starlark.NewBuiltin("value_counts", seriesValueCounts),
	"tolist":       starlark.NewBuiltin("tolist", seriesToList),
	"head":         starlark.NewBuiltin("head", seriesHead),
}

func init() {
	for name, agg := range aggregates {
		agg := agg
		seriesMethods[name] = starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			return agg(b.Receiver().(*Series))
		})
	}
}

func (s *Series) Attr(name string) (starlark.Value, error) {
	if name == "name" {
		return starlark.String(s.name), nil
	}
	if m, ok := seriesMethods[name]; ok {
		return m.BindReceiver(s), nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string {
	names := []string{"name"}
	for n := range seriesMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Binary applies arithmetic element-wise against another Series of the same
// length or a scalar. None propagates.
func (s *Series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH:
	default:
		return nil, nil
	}
	other, isSeries := y.(*Series)
	if isSeries && len(other.vals) != len(s.vals) {
		return nil, fmt.Errorf("series length mismatch: %d vs %d", len(s.vals), len(other.vals))
	}
	out := make([]starlark.Value, len(s.vals))
	for i, x := range s.vals {
		yv := y
		if isSeries {
			yv = other.vals[i]
		}
		if x == starlark.None || yv == starlark.None {
			out[i] = starlark.None
			continue
		}
		l, r := x, yv
		if side == starlark.Right {
			l, r = yv, x
		}
		v, err := starlark.Binary(op, l, r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &Series{name: s.name, vals: out}, nil
}

func (s *Series) present() []starlark.Value {
	out := make([]starlark.Value, 0, len(s.vals))
	for _, v := range s.vals {
		if v != starlark.None {
			out = append(out, v)
		}
	}
	return out
}

func (s *Series) decimals() ([]decimal.Decimal, bool, error) {
	vals := s.present()
	out := make([]decimal.Decimal, len(vals))
	allInt := true
	for i, v := range vals {
		d, isInt, err := toDecimal(v)
		if err != nil {
			return nil, false, fmt.Errorf("column %q: %w", s.name, err)
		}
		allInt = allInt && isInt
		out[i] = d
	}
	return out, allInt, nil
}

// sum adds exactly, so money columns total to the cent.
func (s *Series) sum() (starlark.Value, error) {
	ds, allInt, err := s.decimals()
	if err != nil {
		return nil, err
	}
	return sumDecimals(ds, allInt), nil
}

func (s *Series) mean() (starlark.Value, error) {
	ds, _, err := s.decimals()
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return starlark.None, nil
	}
	total := decimal.Sum(decimal.Zero, ds...)
	return starlark.Float(total.Div(decimal.NewFromInt(int64(len(ds)))).InexactFloat64()), nil
}

// std is the sample standard deviation; None for fewer than two values.
func (s *Series) std() (starlark.Value, error) {
	fs, err := s.floats()
	if err != nil {
		return nil, err
	}
	if len(fs) < 2 {
		return starlark.None, nil
	}
	var mean float64
	for _, f := range fs {
		mean += f
	}
	mean /= float64(len(fs))
	var ss float64
	for _, f := range fs {
		ss += (f - mean) * (f - mean)
	}
	return starlark.Float(math.Sqrt(ss / float64(len(fs)-1))), nil
}

func (s *Series) median() (starlark.Value, error) {
	fs, err := s.floats()
	if err != nil {
		return nil, err
	}
	if len(fs) == 0 {
		return starlark.None, nil
	}
	sort.Float64s(fs)
	n := len(fs)
	if n%2 == 1 {
		return starlark.Float(fs[n/2]), nil
	}
	return starlark.Float((fs[n/2-1] + fs[n/2]) / 2), nil
}

func (s *Series) floats() ([]float64, error) {
	ds, _, err := s.decimals()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.InexactFloat64()
	}
	return out, nil
}

func (s *Series) extreme(op syntax.Token) (starlark.Value, error) {
	var best starlark.Value = starlark.None
	for _, v := range s.present() {
		if best == starlark.None {
			best = v
			continue
		}
		better, err := starlark.Compare(op, v, best)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", s.name, err)
		}
		if better {
			best = v
		}
	}
	return best, nil
}

// distinct returns present values in first-seen order with their counts.
func (s *Series) distinct() []valueCount {
	var out []valueCount
	idx := map[string]int{}
	for _, v := range s.present() {
		k := v.Type() + ":" + v.String()
		if i, ok := idx[k]; ok {
			out[i].n++
			continue
		}
		idx[k] = len(out)
		out = append(out, valueCount{v: v, n: 1})
	}
	return out
}

type valueCount struct {
	v starlark.Value
	n int
}

func seriesUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	d := b.Receiver().(*Series).distinct()
	out := make([]starlark.Value, len(d))
	for i, vc := range d {
		out[i] = vc.v
	}
	return starlark.NewList(out), nil
}

// seriesValueCounts returns value -> occurrences, most frequent first.
func seriesValueCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	d := b.Receiver().(*Series).distinct()
	sort.SliceStable(d, func(i, j int) bool { return d[i].n > d[j].n })
	out := starlark.NewDict(len(d))
	for _, vc := range d {
		if err := out.SetKey(vc.v, starlark.MakeInt(vc.n)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func seriesToList(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	out := make([]starlark.Value, len(s.vals))
	copy(out, s.vals)
	return starlark.NewList(out), nil
}

func seriesHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	idx := headIndex(len(s.vals), n)
	return &Series{name: s.name, vals: s.vals[:len(idx)]}, nil
}

// toDecimal converts an int or float. Floats convert through their shortest
// decimal representation, so 29.99 is exactly 29.99.
func toDecimal(v starlark.Value) (decimal.Decimal, bool, error) {
	switch x := v.(type) {
	case starlark.Int:
		d, err := decimal.NewFromString(x.String())
		return d, true, err
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false, fmt.Errorf("cannot use %s in a sum", x.String())
		}
		return decimal.NewFromFloat(f), false, nil
	}
	return decimal.Decimal{}, false, fmt.Errorf("%s value %s is not numeric", v.Type(), v.String())
}

func sumDecimals(ds []decimal.Decimal, allInt bool) starlark.Value {
	total := decimal.Sum(decimal.Zero, ds...)
	if allInt {
		if total.BigInt().IsInt64() {
			return starlark.MakeInt64(total.IntPart())
		}
		return starlark.MakeBigInt(total.BigInt())
	}
	return starlark.Float(total.InexactFloat64())
}
