package services

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/config"
	"github.com/tbourn/go-groupchat-backend/internal/events"
	"github.com/tbourn/go-groupchat-backend/internal/llm"
	"github.com/tbourn/go-groupchat-backend/internal/tokens"
)

// Stack is the fully wired service graph.
type Stack struct {
	Chats        *ChatService
	Messages     *MessageService
	Assembler    *Assembler
	Store        *SummaryStore
	Ledger       *Ledger
	Orchestrator *Orchestrator
}

// NewStack wires the services from cfg. The orchestrator has no
// Dispatcher yet; the caller sets one once the worker pool exists.
func NewStack(db *gorm.DB, cfg config.Config, provider llm.Provider, n events.Notifier, log zerolog.Logger) *Stack {
	est := tokens.Estimator{CharsPerToken: cfg.Ledger.CharsPerToken}
	policy := SummaryPolicy{
		MinCorpus:    cfg.Context.MinCorpus,
		Trigger:      cfg.Context.Trigger,
		RetainTail:   cfg.Context.RetainTail,
		KeepVersions: cfg.Context.KeepVersions,
		StaleAfter:   cfg.Context.StaleAfter,
	}

	ledger := NewLedger(db, n, log, cfg.Ledger.DefaultQuota, cfg.Ledger.LowWaterMark, cfg.Ledger.ReservationTTL)
	store := &SummaryStore{DB: db}
	orch := &Orchestrator{
		DB:           db,
		Store:        store,
		Ledger:       ledger,
		LLM:          provider,
		Notifier:     n,
		Estimator:    est,
		Policy:       policy,
		Log:          log.With().Str("component", "summarizer").Logger(),
		SystemUserID: cfg.SystemUserID,
		Timeout:      cfg.LLM.Timeout,
	}
	asm := &Assembler{
		DB:        db,
		Selector:  &Selector{DB: db, DefaultLimit: cfg.Context.MaxMessages},
		Store:     store,
		Policy:    policy,
		Estimator: est,
	}
	chats := NewChatService(db)
	msgs := &MessageService{
		DB:              db,
		Chats:           chats,
		Assembler:       asm,
		Ledger:          ledger,
		Orchestrator:    orch,
		LLM:             provider,
		Estimator:       est,
		Log:             log.With().Str("component", "messages").Logger(),
		AssistantUserID: cfg.AssistantUserID,
		SystemUserID:    cfg.SystemUserID,
		MaxMessages:     cfg.Context.MaxMessages,
		ReplyBudget:     cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
		MaxPromptRunes:  cfg.MaxMessageRunes,
		IdempotencyTTL:  cfg.IdempotencyTTL,
	}
	return &Stack{
		Chats:        chats,
		Messages:     msgs,
		Assembler:    asm,
		Store:        store,
		Ledger:       ledger,
		Orchestrator: orch,
	}
}
