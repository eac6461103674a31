// Package llm is the boundary to the external language model. Callers see
// a single request/response Send; transport details stay behind Provider.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every failure of the model call.
var ErrUnavailable = errors.New("llm: provider unavailable")

// Role of a message in the prompt.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one prompt entry. Author is the chat member that wrote it,
// so the model can tell participants apart.
type Message struct {
	Role    Role
	Author  string
	Content string
}

// Response carries the model output and its token usage. UsageReported is
// false when the provider returned no usage figures.
type Response struct {
	Text          string
	InputTokens   int
	OutputTokens  int
	UsageReported bool
}

// Provider sends a prompt to the model.
type Provider interface {
	Send(ctx context.Context, systemPrompt string, msgs []Message) (*Response, error)
}

// Disabled is used when no model is configured; every call fails with
// ErrUnavailable.
type Disabled struct{}

// Send implements Provider.
func (Disabled) Send(context.Context, string, []Message) (*Response, error) {
	return nil, ErrUnavailable
}
