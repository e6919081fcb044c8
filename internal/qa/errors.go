package qa

import (
	"fmt"
	"strings"
)

// GenerationError is an LLM call that failed or produced no code.
type GenerationError struct {
	Stage string // "generate" or "format"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every attempt failed. Its message leads
// with the last error and then lists each attempt's failure in order.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	last := "unknown"
	if n := len(e.Attempts); n > 0 {
		last = e.Attempts[n-1].Err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to answer after %d attempts. Last error: %s", len(e.Attempts), last)
	if len(e.Attempts) > 1 {
		b.WriteString("\n")
		for _, a := range e.Attempts {
			fmt.Fprintf(&b, "\nAttempt %d (%s): %s", a.Number, a.State, a.Err)
		}
	}
	return b.String()
}
