package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	"github.com/KaramelBytes/salesloom-cli/internal/qa"
	"github.com/KaramelBytes/salesloom-cli/internal/qacache"
	"github.com/KaramelBytes/salesloom-cli/internal/sandbox"
	"github.com/KaramelBytes/salesloom-cli/internal/usage"
)

// Reply sources.
const (
	SourceCache = "cache"
	SourceAPI   = "api"
)

// Answerer is the question-answering loop; *qa.Agent implements it.
type Answerer interface {
	Ask(ctx context.Context, question string, frame *sandbox.DataFrame) (*qa.Answer, error)
}

// Reply is what a user sees for one question.
type Reply struct {
	Question string     `json:"question"`
	Text     string     `json:"answer"`
	Source   string     `json:"source"`
	Attempts int        `json:"attempts"`
	Code     string     `json:"code,omitempty"`
	At       time.Time  `json:"at"`
	Answer   *qa.Answer `json:"-"`
}

// AssistantOptions configures an Assistant.
type AssistantOptions struct {
	// APIKey is checked before anything else when RequireAPIKey is set.
	APIKey        string
	RequireAPIKey bool
	Logger        *zap.Logger
}

// Assistant answers questions about sessions. Cache and Governor are optional.
type Assistant struct {
	agent Answerer
	cache *qacache.Cache
	gov   *usage.Governor
	opts  AssistantOptions
	log   *zap.Logger
}

func NewAssistant(agent Answerer, cache *qacache.Cache, gov *usage.Governor, opts AssistantOptions) *Assistant {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{agent: agent, cache: cache, gov: gov, opts: opts, log: log.Named("assistant")}
}

// Ask answers question about s. Cached answers are served without touching
// the quota; a fresh answer is counted once and then cached.
func (a *Assistant) Ask(ctx context.Context, s *Session, question string) (*Reply, error) {
	if question == "" {
		return nil, errors.New("question is empty")
	}
	if a.opts.RequireAPIKey {
		if err := ai.CheckAPIKey(a.opts.APIKey); err != nil {
			return nil, err
		}
	}
	if a.cache != nil {
		if text, ok := a.cache.Get(question, s.Fingerprint()); ok {
			a.log.Debug("cache hit", zap.String("session", s.ID))
			return &Reply{Question: question, Text: text, Source: SourceCache, At: time.Now()}, nil
		}
	}
	if a.gov != nil {
		if err := a.gov.Check(); err != nil {
			return nil, err
		}
	}

	ans, err := a.agent.Ask(ctx, question, s.Frame())
	var ex *qa.ExhaustedError
	if err == nil || errors.As(err, &ex) {
		a.record()
	}
	if err != nil {
		return nil, err
	}

	if a.cache != nil && !a.cache.Set(question, s.Fingerprint(), ans.Text) {
		a.log.Debug("answer cached in memory only")
	}
	return &Reply{
		Question: question,
		Text:     ans.Text,
		Source:   SourceAPI,
		Attempts: len(ans.Attempts),
		Code:     ans.Code,
		At:       time.Now(),
		Answer:   ans,
	}, nil
}

func (a *Assistant) record() {
	if a.gov == nil {
		return
	}
	if !a.gov.RecordCall() {
		a.log.Warn("usage not persisted; counting in memory")
	}
}
