package stages

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tiktoken-go/tokenizer"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// Prompt extracts the prompt text from the parsed request and counts
// its tokens with tiktoken. Events without a parsed request, or with a
// request that carries no messages, pass through untouched.
type Prompt struct {
	mu     sync.RWMutex
	codecs map[string]tokenizer.Codec
}

// NewPrompt creates the prompt-extraction stage.
func NewPrompt() *Prompt {
	return &Prompt{codecs: make(map[string]tokenizer.Codec)}
}

// Name implements ports.Stage.
func (s *Prompt) Name() string { return "prompt" }

// Handle implements ports.Stage.
func (s *Prompt) Handle(ctx context.Context, ev *domain.Event) error {
	if ev.Prompt != nil {
		return nil
	}
	if ev.Request == nil {
		return nil
	}

	// Pull message contents out of the raw body rather than the typed
	// struct: providers nest rich content blocks that the typed decode
	// flattens to empty strings.
	text := extractPromptText(ev.Request.Raw)
	if text == "" {
		return nil
	}

	codec, err := s.codecFor(ev.Request.Model)
	if err != nil {
		return domain.NewFailure(domain.FailurePrompt, s.Name(),
			fmt.Errorf("tokenizer for model %q: %w", ev.Request.Model, err))
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return domain.NewFailure(domain.FailurePrompt, s.Name(),
			fmt.Errorf("encode prompt for %s: %w", ev.RequestID(), err))
	}

	ev.Prompt = &domain.Prompt{
		Text:       text,
		Model:      ev.Request.Model,
		TokenCount: len(ids),
	}
	return nil
}

// codecFor returns a tokenizer codec for the model, falling back to
// cl100k_base for models tiktoken does not know.
func (s *Prompt) codecFor(model string) (tokenizer.Codec, error) {
	s.mu.RLock()
	if codec, ok := s.codecs[model]; ok {
		s.mu.RUnlock()
		return codec, nil
	}
	s.mu.RUnlock()

	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.codecs[model] = codec
	s.mu.Unlock()
	return codec, nil
}

// extractPromptText joins all textual message content in order. Both
// plain string content and rich content-block arrays are handled.
func extractPromptText(raw []byte) string {
	var parts []string
	gjson.GetBytes(raw, "messages").ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content")
		switch {
		case content.Type == gjson.String:
			parts = append(parts, content.String())
		case content.IsArray():
			content.ForEach(func(_, block gjson.Result) bool {
				if text := block.Get("text"); text.Exists() {
					parts = append(parts, text.String())
				}
				return true
			})
		}
		return true
	})
	return strings.Join(parts, "\n")
}

var _ ports.Stage = (*Prompt)(nil)
