package generation

import (
	"context"
	"strings"
)

// Composer wraps retrieved passages in the instructional preamble and asks the chat model.
type Composer struct {
	model    ChatModel
	preamble string
}

// NewComposer returns a Composer using preamble as the fixed instruction text.
func NewComposer(model ChatModel, preamble string) *Composer {
	return &Composer{model: model, preamble: preamble}
}

// BuildSystemPrompt joins passages in ranked order with newlines after the preamble.
// With no passages the grounding block is empty.
func BuildSystemPrompt(preamble string, passages []string) string {
	return preamble + strings.Join(passages, "\n")
}

// Compose issues one completion with the grounding block as system context and the
// raw question as the user turn.
func (c *Composer) Compose(ctx context.Context, question string, passages []string) (string, error) {
	return c.model.Complete(ctx, BuildSystemPrompt(c.preamble, passages), question)
}
