// Package qa answers natural-language questions about a sales table by
// asking a model for a script, running it in the sandbox and asking the
// model again to phrase the result.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	"github.com/KaramelBytes/salesloom-cli/internal/sandbox"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

// State is a step of the answer loop.
type State string

const (
	StateGenerate State = "generate"
	StateExecute  State = "execute"
	StateFormat   State = "format"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// Defaults for Options.
const (
	DefaultMaxAttempts = 3
	DefaultSampleRows  = 3
	DefaultCallTimeout = 60 * time.Second
	DefaultMaxTokens   = 1024
	// errorTokenLimit bounds the error text echoed back to the model.
	errorTokenLimit = 500
)

// Attempt records one generate/execute round. Attempts are values and are
// never modified after they are appended.
type Attempt struct {
	Number   int           `json:"number"`
	State    State         `json:"state"`
	Code     string        `json:"code,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Answer is a successful run of the loop.
type Answer struct {
	ID       string
	Question string
	Text     string
	Code     string
	Result   *sandbox.Result
	// Formatted is false when the phrasing call failed and Text is the raw result.
	Formatted bool
	Attempts  []Attempt
}

// Options configures an Agent.
type Options struct {
	Model       string
	MaxTokens   int
	MaxAttempts int
	SampleRows  int
	// CallTimeout bounds each model call.
	CallTimeout time.Duration
	Sandbox     *sandbox.Sandbox
	Logger      *zap.Logger
}

// Agent runs the generate, execute, format loop against one Runtime.
type Agent struct {
	rt   ai.Runtime
	sb   *sandbox.Sandbox
	opts Options
	log  *zap.Logger
}

// New returns an Agent; zero options fall back to the defaults.
func New(rt ai.Runtime, opts Options) *Agent {
	if opts.Model == "" {
		opts.Model = ai.DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = DefaultSampleRows
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	sb := opts.Sandbox
	if sb == nil {
		sb = sandbox.New(sandbox.Options{})
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{rt: rt, sb: sb, opts: opts, log: log.Named("qa")}
}

// Ask answers question against frame. It returns *ExhaustedError when every
// attempt failed and *ai.CredentialError when the provider rejects the key.
func (a *Agent) Ask(ctx context.Context, question string, frame *sandbox.DataFrame) (*Answer, error) {
	id := uuid.NewString()
	log := a.log.With(zap.String("question_id", id))
	msgs := []ai.Message{
		{Role: "system", Content: BuildSystemPrompt(frame, a.opts.SampleRows)},
		{Role: "user", Content: question},
	}

	var attempts []Attempt
	for n := 1; n <= a.opts.MaxAttempts; n++ {
		start := time.Now()
		fail := func(state State, code string, err error) {
			attempts = append(attempts, Attempt{Number: n, State: state, Code: code, Err: err.Error(), Duration: time.Since(start)})
			log.Info("attempt failed", zap.Int("attempt", n), zap.String("state", string(state)), zap.Error(err))
		}

		reply, err := a.call(ctx, msgs)
		if err != nil {
			if cerr := credentialFailure(err); cerr != nil {
				return nil, cerr
			}
			fail(StateGenerate, "", &GenerationError{Stage: string(StateGenerate), Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		code := ExtractCode(reply)
		if code == "" {
			fail(StateGenerate, "", &GenerationError{Stage: string(StateGenerate), Err: errors.New("the model returned no code")})
			continue
		}

		res, err := a.sb.Run(ctx, code, frame)
		if err != nil {
			fail(StateExecute, code, err)
			if ctx.Err() != nil {
				break
			}
			msgs = append(msgs,
				ai.Message{Role: "assistant", Content: "```python\n" + code + "\n```"},
				ai.Message{Role: "user", Content: RetryMessage(utils.TruncateToTokenLimit(err.Error(), errorTokenLimit))},
			)
			continue
		}
		log.Debug("script succeeded", zap.Int("attempt", n), zap.Uint64("steps", res.Steps))

		ans := &Answer{ID: id, Question: question, Code: code, Result: res}
		ans.Text, err = a.phrase(ctx, question, code, res)
		if err != nil {
			if cerr := credentialFailure(err); cerr != nil {
				return nil, cerr
			}
			log.Warn("format call failed, returning raw result", zap.Error(err))
			ans.Text = RawAnswer(res)
		} else {
			ans.Formatted = true
		}
		attempts = append(attempts, Attempt{Number: n, State: StateDone, Code: code, Duration: time.Since(start)})
		ans.Attempts = attempts
		return ans, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("question cancelled: %w", err)
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

func (a *Agent) phrase(ctx context.Context, question, code string, res *sandbox.Result) (string, error) {
	text, err := a.call(ctx, []ai.Message{
		{Role: "system", Content: formatSystemPrompt},
		{Role: "user", Content: BuildFormatPrompt(question, code, res)},
	})
	if err != nil {
		return "", &GenerationError{Stage: string(StateFormat), Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &GenerationError{Stage: string(StateFormat), Err: errors.New("empty reply")}
	}
	return text, nil
}

// call performs one model call under the per-call timeout.
func (a *Agent) call(ctx context.Context, msgs []ai.Message) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
	defer cancel()
	resp, err := a.rt.Generate(cctx, ai.GenerateRequest{
		Model:       a.opts.Model,
		Messages:    msgs,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("model call timed out after %s: %w", a.opts.CallTimeout, err)
		}
		return "", err
	}
	if cost, ok := ai.EstimateCostUSD(a.opts.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
		a.log.Debug("model call",
			zap.String("model", a.opts.Model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Float64("est_cost_usd", cost),
			zap.String("request_id", resp.RequestID))
	}
	return resp.Content(), nil
}

// credentialFailure maps errors that retrying cannot fix onto *ai.CredentialError.
func credentialFailure(err error) error {
	var ce *ai.CredentialError
	if errors.As(err, &ce) {
		return ce
	}
	var ae *ai.AuthError
	if errors.As(err, &ae) {
		return &ai.CredentialError{Reason: "the provider rejected the key (" + ae.APIError.Error() + ")"}
	}
	return nil
}
