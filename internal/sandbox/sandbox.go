// Package sandbox executes model-generated Starlark against a sales table.
// Scripts see only `df`, the `math` module and a few numeric builtins; there
// is no load(), file, network, process or clock access.
//
// The step budget bounds work, not memory. A single large allocation such as
// `"x" * (1 << 29)` costs one step and is only caught afterwards by the
// result size limit, so the host must tolerate that transient allocation.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ResultVar is the global a script must assign its answer to.
const ResultVar = "result"

// Defaults for Options.
const (
	DefaultMaxSteps       = 5_000_000
	DefaultMaxOutputBytes = 64 << 10
	DefaultMaxValueBytes  = 64 << 10
)

var (
	// ErrNoResult is returned when a script finishes without assigning result.
	ErrNoResult = errors.New("the code did not assign a value to `result`")
	// ErrResultTooLarge is returned when the rendered result exceeds MaxValueBytes.
	ErrResultTooLarge = errors.New("`result` is too large; return an aggregate or a short list instead")
	errNoneInSum      = errors.New("sum: cannot add None; skip missing values first")
)

// ExecutionError wraps any failure of a script: syntax, runtime, step budget
// or cancellation. Message is what the model sees on retry.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string { return e.Message }
func (e *ExecutionError) Unwrap() error { return e.Err }

// Result is the outcome of a successful run.
type Result struct {
	// Value is the rendered `result` global.
	Value string
	// Type is the script-side type name of `result`.
	Type string
	// Output holds everything the script printed.
	Output string
	Steps  uint64
}

// Options bounds a run.
type Options struct {
	MaxSteps       uint64
	MaxOutputBytes int
	MaxValueBytes  int
}

// Sandbox runs scripts with fixed limits. It is safe for concurrent use.
type Sandbox struct {
	opts Options
}

// New returns a Sandbox; zero limits fall back to the defaults.
func New(opts Options) *Sandbox {
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if opts.MaxValueBytes <= 0 {
		opts.MaxValueBytes = DefaultMaxValueBytes
	}
	return &Sandbox{opts: opts}
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Run executes code with df bound to frame. Any failure is an *ExecutionError.
func (s *Sandbox) Run(ctx context.Context, code string, frame *DataFrame) (*Result, error) {
	out := &limitedBuffer{max: s.opts.MaxOutputBytes}
	thread := &starlark.Thread{
		Name:  "answer",
		Print: func(_ *starlark.Thread, msg string) { out.writeLine(msg) },
	}
	thread.SetMaxExecutionSteps(s.opts.MaxSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	predeclared := starlark.StringDict{
		"df":    frame,
		"math":  starlarkmath.Module,
		"sum":   starlark.NewBuiltin("sum", builtinSum),
		"round": starlark.NewBuiltin("round", builtinRound),
	}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, "answer.star", code, predeclared)
	if err != nil {
		return nil, &ExecutionError{Message: describe(err, out.String()), Err: err}
	}
	v, ok := globals[ResultVar]
	if !ok {
		return nil, &ExecutionError{Message: describe(ErrNoResult, out.String()), Err: ErrNoResult}
	}
	// check raw strings before rendering so a huge value is not copied again
	if str, ok := v.(starlark.String); ok && len(str) > s.opts.MaxValueBytes {
		return nil, s.tooLarge(len(str), out.String())
	}
	rendered := Render(v)
	if len(rendered) > s.opts.MaxValueBytes {
		return nil, s.tooLarge(len(rendered), out.String())
	}
	return &Result{Value: rendered, Type: v.Type(), Output: out.String(), Steps: thread.ExecutionSteps()}, nil
}

func (s *Sandbox) tooLarge(size int, output string) error {
	err := fmt.Errorf("%w (%d bytes, limit %d)", ErrResultTooLarge, size, s.opts.MaxValueBytes)
	return &ExecutionError{Message: describe(err, output), Err: err}
}

// describe produces the error text fed back to the model: the Starlark
// backtrace when there is one, plus any output printed before the failure.
func describe(err error, output string) string {
	msg := err.Error()
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Backtrace()
	}
	if output != "" {
		msg += "\nOutput before the error:\n" + output
	}
	return msg
}

// limitedBuffer keeps at most max bytes of printed output.
type limitedBuffer struct {
	b         strings.Builder
	max       int
	truncated bool
}

func (l *limitedBuffer) writeLine(s string) {
	if l.truncated {
		return
	}
	if l.b.Len()+len(s)+1 > l.max {
		l.truncated = true
		fmt.Fprintf(&l.b, "[output truncated at %d bytes]\n", l.max)
		return
	}
	l.b.WriteString(s)
	l.b.WriteByte('\n')
}

func (l *limitedBuffer) String() string { return l.b.String() }
