package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

// Transcript accumulates the replies of a chat for export.
type Transcript struct {
	mu      sync.Mutex
	session string
	replies []Reply
}

func NewTranscript(s *Session) *Transcript {
	return &Transcript{session: s.Name}
}

func (t *Transcript) Add(r Reply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, r)
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.replies)
}

// Markdown renders the chat history.
func (t *Transcript) Markdown() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "# Chat history: %s\n", t.session)
	for _, r := range t.replies {
		fmt.Fprintf(&b, "\n## %s\n\n_%s, source: %s_\n\n%s\n", r.Question, r.At.Format("2006-01-02 15:04:05"), r.Source, r.Text)
		if r.Code != "" {
			fmt.Fprintf(&b, "\n```python\n%s\n```\n", r.Code)
		}
	}
	return b.String()
}

// WriteFile saves the history as Markdown, or as JSON when path ends in .json.
func (t *Transcript) WriteFile(path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		t.mu.Lock()
		replies := append([]Reply(nil), t.replies...)
		t.mu.Unlock()
		return utils.WriteJSONFile(path, replies)
	}
	return utils.SafeWriteFile(path, []byte(t.Markdown()))
}
