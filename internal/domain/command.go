package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// CommandKind is the closed set of chat commands understood by the service.
type CommandKind string

const (
	CommandNone      CommandKind = ""
	CommandAsk       CommandKind = "ask"
	CommandWiki      CommandKind = "wiki"
	CommandSummarize CommandKind = "summarize"
	CommandContext   CommandKind = "context"
	CommandBalance   CommandKind = "balance"
)

// Command is a message resolved at ingestion. Kind is CommandNone for plain
// text; Arg is the remainder after the command word.
type Command struct {
	Kind CommandKind
	Name string
	Arg  string
}

// InvokesAssistant reports whether the command results in an LM call.
func (c Command) InvokesAssistant() bool {
	return c.Kind == CommandAsk || c.Kind == CommandWiki
}

var commandNames = map[string]CommandKind{
	"ask":       CommandAsk,
	"ai":        CommandAsk,
	"deepseek":  CommandAsk,
	"wiki":      CommandWiki,
	"summarize": CommandSummarize,
	"summarise": CommandSummarize,
	"context":   CommandContext,
	"balance":   CommandBalance,
}

var fold = cases.Fold()

// ParseCommand resolves a leading slash command. Unknown commands are plain
// text.
func ParseCommand(text string) Command {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "/") {
		return Command{}
	}
	word, rest := s[1:], ""
	if i := strings.IndexFunc(word, unicode.IsSpace); i >= 0 {
		word, rest = word[:i], word[i:]
	}
	// "/ask@assistant" addresses the bot explicitly.
	word, _, _ = strings.Cut(word, "@")
	kind, ok := commandNames[fold.String(word)]
	if !ok {
		return Command{}
	}
	return Command{Kind: kind, Name: fold.String(word), Arg: strings.TrimSpace(rest)}
}
