package generation

import (
	"context"
	"strings"
)

// EchoModel is an offline ChatModel that replies with the grounding passages it was given.
type EchoModel struct {
	// Preamble is stripped from the system prompt before echoing.
	Preamble string
}

// Complete returns the grounding block, or a fixed notice when it is empty.
func (m EchoModel) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	grounding := strings.TrimSpace(strings.TrimPrefix(system, m.Preamble))
	if grounding == "" {
		return "未检索到相关法律条文。", nil
	}
	return "相关法律条文：\n" + grounding, nil
}
