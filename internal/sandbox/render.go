package sandbox

import (
	"fmt"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

// maxRenderedRows bounds how many table rows Render prints.
const maxRenderedRows = 50

// Render formats a script value as plain text. Top-level strings are
// unquoted and floats never use exponent notation.
func Render(v starlark.Value) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	var b strings.Builder
	render(&b, v)
	return b.String()
}

func render(b *strings.Builder, v starlark.Value) {
	switch x := v.(type) {
	case starlark.Float:
		b.WriteString(formatFloat(float64(x)))
	case *starlark.List:
		renderSeq(b, "[", "]", x.Len(), x.Index)
	case starlark.Tuple:
		renderSeq(b, "(", ")", x.Len(), x.Index)
	case *starlark.Dict:
		b.WriteString("{")
		for i, item := range x.Items() {
			if i > 0 {
				b.WriteString(", ")
			}
			render(b, item[0])
			b.WriteString(": ")
			render(b, item[1])
		}
		b.WriteString("}")
	case *Series:
		fmt.Fprintf(b, "%s: ", x.name)
		renderSeq(b, "[", "]", len(x.vals), x.Index)
	case *DataFrame:
		renderFrame(b, x)
	default:
		b.WriteString(v.String())
	}
}

func renderSeq(b *strings.Builder, open, close string, n int, at func(int) starlark.Value) {
	b.WriteString(open)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		render(b, at(i))
	}
	b.WriteString(close)
}

func renderFrame(b *strings.Builder, f *DataFrame) {
	b.WriteString(strings.Join(f.cols, " | "))
	for i, r := range f.rows {
		if i == maxRenderedRows {
			fmt.Fprintf(b, "\n... %d more rows", len(f.rows)-maxRenderedRows)
			break
		}
		b.WriteString("\n")
		for j, v := range r {
			if j > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(Render(v))
		}
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
