// Package services – MessageService
//
// This file implements MessageService, the component that owns the lifecycle
// of chat messages. It validates inputs, checks membership, persists the user
// message and dispatches chat commands. Assistant commands run the metered
// call: assemble context, reserve the estimated tokens, call the model,
// persist the reply and settle the reservation with the reported usage.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// include chat/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/llm"
	"github.com/tbourn/go-groupchat-backend/internal/observability"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
	"github.com/tbourn/go-groupchat-backend/internal/tokens"
)

const unavailableReply = "The assistant is unavailable right now. Please try again later."

// PostResult is what a posted message produced. Only the fields relevant to
// the message's command are set.
type PostResult struct {
	Message *domain.Message `json:"message"`
	Reply   *domain.Message `json:"reply,omitempty"`
	Usage   *Reconciliation `json:"usage,omitempty"`
	Summary *domain.Summary `json:"summary,omitempty"`
	Context *ContextPreview `json:"context,omitempty"`
	Balance *Balance        `json:"balance,omitempty"`
}

// MessageService coordinates message persistence and assistant calls.
type MessageService struct {
	DB           *gorm.DB
	Chats        *ChatService
	Assembler    *Assembler
	Ledger       *Ledger
	Orchestrator *Orchestrator
	LLM          llm.Provider
	Estimator    tokens.Estimator
	Log          zerolog.Logger

	// Identities used for generated messages.
	AssistantUserID string
	SystemUserID    string

	// MaxMessages bounds the context window; 0 uses the selector default.
	MaxMessages int
	// ReplyBudget is reserved on top of the prompt estimate for the answer.
	ReplyBudget int
	// Timeout bounds a single model call.
	Timeout time.Duration

	// Optional guards
	MaxPromptRunes int

	// IdempotencyTTL is how long a remembered post can be replayed.
	IdempotencyTTL time.Duration
}

// Post stores a user message in chatID and runs its command, if any.
// A failed model call is not an error: the reply is a system message saying
// the assistant is unavailable. A denied quota check returns
// *QuotaExceededError after the user message is stored.
func (s *MessageService) Post(ctx context.Context, userID, chatID, content string) (*PostResult, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Post",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(content) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}
	member, err := s.Chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrChatNotFound
	}

	cmd := domain.ParseCommand(content)
	span.SetAttributes(attribute.String("message.command", string(cmd.Kind)))
	msg := &domain.Message{
		ChatID:     chatID,
		AuthorID:   userID,
		Kind:       domain.KindUser,
		Content:    content,
		IsCommand:  cmd.Kind != domain.CommandNone,
		Command:    cmd.Kind,
		CommandArg: cmd.Arg,
	}
	if err := repo.CreateMessage(ctx, s.DB, msg); err != nil {
		return nil, err
	}
	if s.Chats != nil {
		title := content
		if cmd.Kind != domain.CommandNone {
			title = cmd.Arg
		}
		if err := s.Chats.AutoTitle(ctx, chatID, title); err != nil {
			s.Log.Debug().Err(err).Str("chat_id", chatID).Msg("auto title")
		}
	}

	res := &PostResult{Message: msg}
	switch {
	case cmd.InvokesAssistant():
		err = s.ask(ctx, userID, chatID, cmd, res)
	case cmd.Kind == domain.CommandSummarize:
		err = s.forceSummary(ctx, userID, chatID, res)
	case cmd.Kind == domain.CommandContext:
		res.Context, err = s.Assembler.Preview(ctx, chatID, s.MaxMessages)
	case cmd.Kind == domain.CommandBalance:
		res.Balance, err = s.Ledger.Balance(ctx, userID)
	}

	s.evaluate(ctx, chatID, userID)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	return res, nil
}

// ask runs one metered assistant call for cmd.
func (s *MessageService) ask(ctx context.Context, userID, chatID string, cmd domain.Command, res *PostResult) error {
	if strings.TrimSpace(cmd.Arg) == "" {
		return ErrEmptyMessage
	}
	asm, err := s.Assembler.Assemble(ctx, chatID, s.MaxMessages)
	if err != nil {
		return err
	}
	window := asm.Messages
	if n := len(window); n == 0 || window[n-1].ID != res.Message.ID {
		window = append(window, *res.Message)
	}

	system := assistantPrompt
	if cmd.Kind == domain.CommandWiki {
		system = wikiPrompt
	}
	prompt := toPrompt(asm.Summary, window)
	estimate := s.Estimator.EstimateAll(promptTexts(system, prompt)...) + s.ReplyBudget

	callID := uuid.NewString()
	dec, err := s.Ledger.CheckAndReserve(ctx, userID, callID, estimate)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return &QuotaExceededError{Remaining: dec.Remaining, Quota: dec.Quota}
	}

	// The reservation must be settled even if the caller goes away.
	settleCtx := context.WithoutCancel(ctx)

	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	start := time.Now()
	resp, callErr := s.LLM.Send(callCtx, system, prompt)
	observability.LMCall("chat", start, callErr)
	if callErr == nil && strings.TrimSpace(resp.Text) == "" {
		callErr = errors.New("empty reply from model")
	}

	if callErr != nil {
		s.Log.Warn().Err(callErr).Str("chat_id", chatID).Str("call_id", callID).Msg("assistant call failed")
		if _, err := s.Ledger.Settle(settleCtx, ReconcileInput{CallID: callID, UserID: userID, Category: domain.CategoryChat, Reported: true}); err != nil {
			s.Log.Error().Err(err).Str("call_id", callID).Msg("release reservation")
		}
		reply := &domain.Message{ChatID: chatID, AuthorID: s.SystemUserID, Kind: domain.KindSystem, Content: unavailableReply}
		if err := repo.CreateMessage(settleCtx, s.DB, reply); err != nil {
			return err
		}
		res.Reply = reply
		return nil
	}

	reply := &domain.Message{
		ChatID:   chatID,
		AuthorID: s.AssistantUserID,
		Kind:     domain.KindAssistant,
		Content:  strings.TrimSpace(resp.Text),
	}
	persistErr := repo.CreateMessage(settleCtx, s.DB, reply)

	in, out := int64(resp.InputTokens), int64(resp.OutputTokens)
	if !resp.UsageReported {
		in = int64(estimate - s.ReplyBudget)
		out = int64(s.Estimator.Estimate(reply.Content))
	}
	rec, err := s.Ledger.Settle(settleCtx, ReconcileInput{
		CallID:       callID,
		UserID:       userID,
		Category:     domain.CategoryChat,
		InputTokens:  in,
		OutputTokens: out,
		Reported:     resp.UsageReported,
	})
	if err != nil {
		// The usage stays on the reservation and the watchdog charges it.
		s.Log.Error().Err(err).Str("call_id", callID).Msg("reconcile usage")
	} else {
		res.Usage = &rec
	}
	if persistErr != nil {
		return fmt.Errorf("persist assistant reply for call %s: %w", callID, persistErr)
	}
	res.Reply = reply
	return nil
}

// forceSummary runs /summarize and reports the outcome as a system message.
func (s *MessageService) forceSummary(ctx context.Context, userID, chatID string, res *PostResult) error {
	sum, err := s.Orchestrator.ForceSummarize(ctx, chatID, userID)
	var text string
	switch {
	case errors.Is(err, ErrSummarizationInFlight):
		text = "A summary is already being generated."
	case err != nil:
		text = "Summarization failed. The previous summary is still in use."
	case sum == nil:
		text = "Nothing new to summarize."
	default:
		text = fmt.Sprintf("Summary updated to version %d, covering %d messages.", sum.Version, sum.CoveredMessageCount)
		res.Summary = sum
	}
	reply := &domain.Message{ChatID: chatID, AuthorID: s.SystemUserID, Kind: domain.KindSystem, Content: text}
	if cerr := repo.CreateMessage(context.WithoutCancel(ctx), s.DB, reply); cerr != nil {
		return cerr
	}
	res.Reply = reply
	return nil
}

// evaluate gives the orchestrator a chance to schedule a summary. Errors are
// logged only; a chat message never fails because of summarization.
func (s *MessageService) evaluate(ctx context.Context, chatID, userID string) {
	if s.Orchestrator == nil {
		return
	}
	if _, err := s.Orchestrator.Evaluate(context.WithoutCancel(ctx), chatID, userID); err != nil {
		s.Log.Warn().Err(err).Str("chat_id", chatID).Msg("summary trigger evaluation failed")
	}
}

// ListPage returns paginated messages for a chat the user belongs to.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	member, err := s.Chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !member {
		return nil, 0, ErrChatNotFound
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	return items, total, err
}

// Remember records that key produced messageID so a retry replays it.
// A concurrent retry that already recorded the key is not an error.
func (s *MessageService) Remember(ctx context.Context, userID, chatID, key, messageID string) error {
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, chatID, key, messageID, 200, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Replay rebuilds the result of an earlier post from storage: the user
// message and the reply that followed it, if one exists yet.
func (s *MessageService) Replay(ctx context.Context, userID, chatID, messageID string) (*PostResult, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Replay",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("message.id", messageID),
		),
	)
	defer span.End()

	msg, err := repo.GetMessage(ctx, s.DB, chatID, messageID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && msg.AuthorID != userID) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	res := &PostResult{Message: msg}
	if (domain.Command{Kind: msg.Command}).InvokesAssistant() || msg.Command == domain.CommandSummarize {
		reply, err := repo.NextReply(ctx, s.DB, msg)
		switch {
		case err == nil:
			res.Reply = reply
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
	}
	return res, nil
}

