package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Config selects an OpenAI-compatible endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// LangChain adapts a langchaingo model to Provider.
type LangChain struct {
	Model       llms.Model
	MaxTokens   int
	Temperature float64
}

// NewOpenAI builds a Provider for an OpenAI-compatible chat endpoint
// (OpenAI, DeepSeek, OpenRouter, a local gateway).
func NewOpenAI(cfg Config) (*LangChain, error) {
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: openai client: %w", err)
	}
	return &LangChain{Model: m, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}, nil
}

// Send implements Provider.
func (l *LangChain) Send(ctx context.Context, systemPrompt string, msgs []Message) (*Response, error) {
	content := make([]llms.MessageContent, 0, len(msgs)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, m := range msgs {
		content = append(content, toContent(m))
	}

	var opts []llms.CallOption
	if l.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.MaxTokens))
	}
	if l.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(l.Temperature))
	}

	resp, err := l.Model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	choice := resp.Choices[0]
	out := &Response{Text: strings.TrimSpace(choice.Content)}
	in, okIn := usage(choice.GenerationInfo, "PromptTokens", "InputTokens")
	outTok, okOut := usage(choice.GenerationInfo, "CompletionTokens", "OutputTokens")
	if okIn || okOut {
		out.InputTokens, out.OutputTokens, out.UsageReported = in, outTok, true
	}
	return out, nil
}

func toContent(m Message) llms.MessageContent {
	switch m.Role {
	case RoleAssistant:
		return llms.TextParts(llms.ChatMessageTypeAI, m.Content)
	case RoleSystem:
		return llms.TextParts(llms.ChatMessageTypeSystem, m.Content)
	default:
		text := m.Content
		if m.Author != "" {
			text = m.Author + ": " + text
		}
		return llms.TextParts(llms.ChatMessageTypeHuman, text)
	}
}

// usage reads the first present integer among keys.
func usage(info map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v, true
		case int32:
			return int(v), true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}
