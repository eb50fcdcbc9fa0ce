package domain

import "context"

// Completer sends one instruction to a generation model and returns the
// plain-text completion. Implementations must sample deterministically
// (temperature zero) so identical context yields identical answers.
type Completer interface {
	Complete(ctx context.Context, instruction string) (CompletionResult, error)
}

// CompletionResult carries the generated text and token usage.
type CompletionResult struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}
