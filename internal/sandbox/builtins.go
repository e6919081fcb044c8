package sandbox

import "go.starlark.net/starlark"

// sum(iterable, start=0) adds numbers exactly.
func builtinSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var it starlark.Iterable
	var start starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &it, "start?", &start); err != nil {
		return nil, err
	}
	vals := []starlark.Value{start}
	iter := it.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		vals = append(vals, v)
	}
	for _, x := range vals {
		if x == starlark.None {
			return nil, errNoneInSum
		}
	}
	return (&Series{name: "sum", vals: vals}).sum()
}

// round(x, ndigits=None) rounds half away from zero; without ndigits it
// returns an int.
func builtinRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	var digits starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "number", &x, "ndigits?", &digits); err != nil {
		return nil, err
	}
	d, _, err := toDecimal(x)
	if err != nil {
		return nil, err
	}
	if digits == starlark.None {
		return starlark.MakeInt64(d.Round(0).IntPart()), nil
	}
	var n int
	if err := starlark.AsInt(digits, &n); err != nil {
		return nil, err
	}
	r := d.Round(int32(n))
	if _, ok := x.(starlark.Int); ok {
		return decimalValue(r), nil
	}
	return starlark.Float(r.InexactFloat64()), nil
}
