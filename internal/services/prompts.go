package services

import (
	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/llm"
)

const (
	assistantPrompt = "You are an assistant taking part in a group chat. " +
		"Each user message is prefixed with its author. Answer the latest request concisely."

	wikiPrompt = "You are an encyclopedic assistant in a group chat. " +
		"Answer the latest request with a short, factual, neutral explanation."

	summarizerPrompt = "Condense the conversation below into a compact summary that preserves " +
		"decisions, open questions, names and facts a participant would need later. " +
		"Fold in the earlier summary if one is given. Reply with the summary only."

	summaryPreface = "Summary of the earlier conversation:\n"
)

// toPrompt maps stored messages to model messages, oldest first.
func toPrompt(sum *domain.Summary, msgs []domain.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs)+1)
	if sum != nil && sum.Text != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: summaryPreface + sum.Text})
	}
	for _, m := range msgs {
		pm := llm.Message{Content: m.Content}
		switch m.Kind {
		case domain.KindAssistant:
			pm.Role = llm.RoleAssistant
		case domain.KindSystem:
			pm.Role = llm.RoleSystem
		default:
			pm.Role = llm.RoleUser
			pm.Author = m.AuthorID
			if (domain.Command{Kind: m.Command}).InvokesAssistant() && m.CommandArg != "" {
				pm.Content = m.CommandArg
			}
		}
		out = append(out, pm)
	}
	return out
}

func promptTexts(system string, msgs []llm.Message) []string {
	out := make([]string, 0, len(msgs)+1)
	out = append(out, system)
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}
