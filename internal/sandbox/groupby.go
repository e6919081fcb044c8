package sandbox

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// GroupBy partitions a DataFrame by one column. Groups keep the order in
// which their key first appears; rows whose key is None are left out.
type GroupBy struct {
	frame  *DataFrame
	by     string
	keys   []starlark.Value
	groups [][]int
}

var (
	_ starlark.Mapping  = (*GroupBy)(nil)
	_ starlark.HasAttrs = (*GroupBy)(nil)
)

func newGroupBy(f *DataFrame, by string) (*GroupBy, error) {
	ci, err := f.colIndex(by)
	if err != nil {
		return nil, err
	}
	g := &GroupBy{frame: f, by: by}
	idx := map[string]int{}
	for i, r := range f.rows {
		k := r[ci]
		if k == starlark.None {
			continue
		}
		ks := k.Type() + ":" + k.String()
		gi, ok := idx[ks]
		if !ok {
			gi = len(g.keys)
			idx[ks] = gi
			g.keys = append(g.keys, k)
			g.groups = append(g.groups, nil)
		}
		g.groups[gi] = append(g.groups[gi], i)
	}
	return g, nil
}

func (g *GroupBy) String() string        { return fmt.Sprintf("<GroupBy %q %d groups>", g.by, len(g.keys)) }
func (g *GroupBy) Type() string          { return "GroupBy" }
func (g *GroupBy) Freeze()               {}
func (g *GroupBy) Truth() starlark.Bool  { return len(g.keys) > 0 }
func (g *GroupBy) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: GroupBy") }

// Get implements gb["Column"].
func (g *GroupBy) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("GroupBy index must be a column name string, got %s", k.Type())
	}
	ci, err := g.frame.colIndex(name)
	if err != nil {
		return nil, false, err
	}
	return &groupedColumn{g: g, col: ci, name: name}, true, nil
}

var groupMethods = map[string]*starlark.Builtin{
	"size":   starlark.NewBuiltin("size", groupSize),
	"groups": starlark.NewBuiltin("groups", groupFrames),
}

func (g *GroupBy) Attr(name string) (starlark.Value, error) {
	if m, ok := groupMethods[name]; ok {
		return m.BindReceiver(g), nil
	}
	return nil, nil
}

func (g *GroupBy) AttrNames() []string { return []string{"groups", "size"} }

func groupSize(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	g := b.Receiver().(*GroupBy)
	out := starlark.NewDict(len(g.keys))
	for i, k := range g.keys {
		if err := out.SetKey(k, starlark.MakeInt(len(g.groups[i]))); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// groupFrames returns key -> sub-DataFrame.
func groupFrames(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	g := b.Receiver().(*GroupBy)
	out := starlark.NewDict(len(g.keys))
	for i, k := range g.keys {
		if err := out.SetKey(k, g.frame.subset(g.groups[i])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// groupedColumn is gb["Column"]; each aggregate returns key -> value.
type groupedColumn struct {
	g    *GroupBy
	col  int
	name string
}

var _ starlark.HasAttrs = (*groupedColumn)(nil)

func (c *groupedColumn) String() string {
	return fmt.Sprintf("<SeriesGroupBy %q by %q>", c.name, c.g.by)
}
func (c *groupedColumn) Type() string          { return "SeriesGroupBy" }
func (c *groupedColumn) Freeze()               {}
func (c *groupedColumn) Truth() starlark.Bool  { return true }
func (c *groupedColumn) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: SeriesGroupBy") }

func (c *groupedColumn) Attr(name string) (starlark.Value, error) {
	agg, ok := aggregates[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
			return nil, err
		}
		return c.apply(agg)
	}), nil
}

func (c *groupedColumn) AttrNames() []string {
	names := make([]string, 0, len(aggregates))
	for n := range aggregates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *groupedColumn) apply(agg aggregate) (starlark.Value, error) {
	out := starlark.NewDict(len(c.g.keys))
	for i, k := range c.g.keys {
		rows := c.g.groups[i]
		s := &Series{name: c.name, vals: make([]starlark.Value, len(rows))}
		for j, ri := range rows {
			s.vals[j] = c.g.frame.rows[ri][c.col]
		}
		v, err := agg(s)
		if err != nil {
			return nil, err
		}
		if err := out.SetKey(k, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}
