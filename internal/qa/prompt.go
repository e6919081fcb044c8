package qa

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/salesloom-cli/internal/sandbox"
)

const sandboxAPI = `df is a table of sales rows. Available operations:
  len(df), df.columns, df.shape, df.head(n), df.rows()
  for row in df: row["Total"]            # rows are dicts keyed by column name
  df["Col"]                              # a Series
  df.filter(lambda row: row["Quantity"] > 1)
  df.where("Customer State", "CA")
  df.sort_values("Total", ascending=False)
  df.groupby("Product Name")["Total"].sum()   # dict of key -> value, also mean/count/min/max
  df.groupby("Product Name").size()
Series: sum() mean() min() max() count() std() median() unique() nunique()
        value_counts() tolist() head(n), len(s), s[i], arithmetic with + - * /
Builtins: sum, round, sorted, len, min, max, math.*`

const systemRules = `Write Starlark (a Python dialect) that answers the question using df.
Rules:
- Assign the final answer to a variable named result.
- Do not use import, load(), open(), files, the network or f-strings; use "%s" % x or str(x).
- None marks a missing value; skip it before arithmetic.
- Reply with a single code block and nothing else.`

// BuildSystemPrompt describes the table, its types, a few sample rows and
// the scripting surface available to generated code.
func BuildSystemPrompt(frame *sandbox.DataFrame, sampleRows int) string {
	var sb strings.Builder
	sb.WriteString("[TASK]\n")
	sb.WriteString(systemRules)
	sb.WriteString("\n\n[COLUMNS]\n")
	types := frame.ColumnTypes()
	cols := frame.Columns()
	for _, c := range cols {
		fmt.Fprintf(&sb, "- %s: %s\n", c, types[c])
	}
	fmt.Fprintf(&sb, "\n[SAMPLE ROWS] (%d of %d)\n", min(sampleRows, frame.Len()), frame.Len())
	sb.WriteString(sandbox.Render(frame.Head(sampleRows)))
	sb.WriteString("\n\n[API]\n")
	sb.WriteString(sandboxAPI)
	sb.WriteString("\n")
	return sb.String()
}

// RetryMessage is the user turn that follows a failed script.
func RetryMessage(errText string) string {
	return "The previous code failed with this error:\n" + errText + "\nPlease fix the code."
}

const formatSystemPrompt = `You turn the output of an analysis script into a short answer for a store owner.
Use plain language, format money as $1,234.56, keep it under 120 words and do not mention code.`

// BuildFormatPrompt asks the model to phrase a computed result.
func BuildFormatPrompt(question, code string, res *sandbox.Result) string {
	var sb strings.Builder
	sb.WriteString("[QUESTION]\n")
	sb.WriteString(question)
	sb.WriteString("\n\n[CODE]\n")
	sb.WriteString(code)
	sb.WriteString("\n\n[RESULT]\n")
	fmt.Fprintf(&sb, "(%s) %s", res.Type, res.Value)
	if res.Output != "" {
		sb.WriteString("\n\n[PRINTED OUTPUT]\n")
		sb.WriteString(res.Output)
	}
	sb.WriteString("\n")
	return sb.String()
}

// RawAnswer renders a result without a model, used when phrasing fails.
func RawAnswer(res *sandbox.Result) string {
	var sb strings.Builder
	sb.WriteString("Result: ")
	sb.WriteString(res.Value)
	if out := strings.TrimSpace(res.Output); out != "" {
		sb.WriteString("\n\nOutput:\n")
		sb.WriteString(out)
	}
	return sb.String()
}

// fences are tried in order; the first match wins.
var fenceTags = []string{"python", "starlark", "py", ""}

// ExtractCode pulls code out of a model reply: a python or starlark fence
// first, then any fence, then the whole reply.
func ExtractCode(reply string) string {
	for _, tag := range fenceTags {
		if code, ok := fenced(reply, tag); ok {
			return code
		}
	}
	return strings.TrimSpace(reply)
}

func fenced(s, tag string) (string, bool) {
	rest := s
	for {
		i := strings.Index(rest, "```")
		if i < 0 {
			return "", false
		}
		rest = rest[i+3:]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return "", false
		}
		info := strings.ToLower(strings.TrimSpace(rest[:nl]))
		body := rest[nl+1:]
		end := strings.Index(body, "```")
		if end < 0 {
			return "", false
		}
		if tag == "" || info == tag {
			return strings.TrimSpace(body[:end]), true
		}
		rest = body[end+3:]
	}
}
