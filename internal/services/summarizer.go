// Package services – Orchestrator
//
// Orchestrator decides when a chat needs a new rolling summary and runs the
// summarization job. The per-chat job flag lives in chat_context_state and
// moves idle → scheduled → summarizing → idle by compare-and-swap, so at most
// one job per chat is in flight across every process sharing the database.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/events"
	"github.com/tbourn/go-groupchat-backend/internal/llm"
	"github.com/tbourn/go-groupchat-backend/internal/observability"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
	"github.com/tbourn/go-groupchat-backend/internal/tokens"
)

// SummaryPolicy holds the summarization thresholds.
type SummaryPolicy struct {
	MinCorpus    int
	Trigger      int
	RetainTail   int
	KeepVersions int
	StaleAfter   time.Duration
}

// DefaultSummaryPolicy returns the stock thresholds.
func DefaultSummaryPolicy() SummaryPolicy {
	return SummaryPolicy{MinCorpus: 20, Trigger: 10, RetainTail: 10, KeepVersions: 5, StaleAfter: 10 * time.Minute}
}

// ShouldSummarize reports whether unsummarized messages justify a new
// summary: enough corpus, and enough of it outside the retained tail.
func (p SummaryPolicy) ShouldSummarize(unsummarized int64) bool {
	return unsummarized >= int64(p.MinCorpus) &&
		unsummarized-int64(p.RetainTail) >= int64(p.Trigger)
}

// Dispatcher is poked after a job is scheduled.
type Dispatcher interface {
	Wake()
}

// Orchestrator schedules and runs summarization jobs.
type Orchestrator struct {
	DB         *gorm.DB
	Store      *SummaryStore
	Ledger     *Ledger
	LLM        llm.Provider
	Notifier   events.Notifier
	Estimator  tokens.Estimator
	Policy     SummaryPolicy
	Dispatcher Dispatcher
	Log        zerolog.Logger

	// SystemUserID is the account summarization cost is charged to.
	SystemUserID string
	Timeout      time.Duration

	Now func() time.Time
}

type job struct {
	ChatID      string
	JobID       string
	BaseVersion int64
	TriggeredBy string
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// Unsummarized counts the chat's messages strictly after the latest
// watermark (all messages when the chat has no summary).
func (o *Orchestrator) Unsummarized(ctx context.Context, chatID string) (int64, *domain.Summary, error) {
	latest, err := o.Store.Latest(ctx, chatID)
	if err != nil {
		return 0, nil, err
	}
	var (
		at *time.Time
		id string
	)
	if latest != nil {
		at, id = &latest.WatermarkCreatedAt, latest.WatermarkMessageID
	}
	n, err := repo.CountMessagesAfter(ctx, o.DB, chatID, at, id)
	return n, latest, err
}

// Evaluate schedules a job for chatID when the trigger condition holds and
// no job is scheduled or running. It reports whether this call scheduled it.
func (o *Orchestrator) Evaluate(ctx context.Context, chatID, userID string) (bool, error) {
	ctx, span := otel.Tracer("services/Orchestrator").Start(ctx, "Evaluate",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("user.id", userID)),
	)
	defer span.End()

	n, latest, err := o.Unsummarized(ctx, chatID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Int64("summary.unsummarized", n))
	if !o.Policy.ShouldSummarize(n) {
		return false, nil
	}

	if err := repo.EnsureContextState(ctx, o.DB, chatID); err != nil {
		return false, err
	}
	jobID := uuid.NewString()
	ok, err := repo.ScheduleSummarization(ctx, o.DB, chatID, jobID, versionOf(latest), userID, o.now())
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if !ok {
		return false, nil
	}
	o.Log.Info().Str("chat_id", chatID).Str("job_id", jobID).Int64("unsummarized", n).Msg("summarization scheduled")
	if o.Dispatcher != nil {
		o.Dispatcher.Wake()
	}
	return true, nil
}

// RunScheduled claims the scheduled job jobID of chatID and runs it. It is a
// no-op when the job was already claimed elsewhere.
func (o *Orchestrator) RunScheduled(ctx context.Context, chatID, jobID string) error {
	ok, err := repo.StartScheduled(ctx, o.DB, chatID, jobID, o.now())
	if err != nil || !ok {
		return err
	}
	st, err := repo.GetContextState(ctx, o.DB, chatID)
	if err != nil {
		return err
	}
	_, err = o.run(ctx, job{ChatID: chatID, JobID: jobID, BaseVersion: st.BaseVersion, TriggeredBy: st.TriggeredBy})
	return err
}

// ClaimNext claims the oldest scheduled job and runs it. It reports whether
// a job was found.
func (o *Orchestrator) ClaimNext(ctx context.Context) (bool, error) {
	st, err := repo.ClaimNextScheduled(ctx, o.DB, o.now())
	if err != nil || st == nil {
		return false, err
	}
	_, err = o.run(ctx, job{ChatID: st.ChatID, JobID: st.JobID, BaseVersion: st.BaseVersion, TriggeredBy: st.TriggeredBy})
	return true, err
}

// ForceSummarize runs a job for chatID now, regardless of the trigger. It
// returns the new summary, or nil when there was nothing to condense.
func (o *Orchestrator) ForceSummarize(ctx context.Context, chatID, userID string) (*domain.Summary, error) {
	ctx, span := otel.Tracer("services/Orchestrator").Start(ctx, "ForceSummarize",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("user.id", userID)),
	)
	defer span.End()

	if err := repo.EnsureContextState(ctx, o.DB, chatID); err != nil {
		return nil, err
	}
	latest, err := o.Store.Latest(ctx, chatID)
	if err != nil {
		return nil, err
	}
	j := job{ChatID: chatID, JobID: uuid.NewString(), BaseVersion: versionOf(latest), TriggeredBy: userID}
	ok, err := repo.StartImmediate(ctx, o.DB, chatID, j.JobID, j.BaseVersion, userID, o.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSummarizationInFlight
	}
	return o.run(ctx, j)
}

// ResetStale returns jobs stuck longer than StaleAfter to idle.
func (o *Orchestrator) ResetStale(ctx context.Context) (int64, error) {
	now := o.now()
	n, err := repo.ResetStaleJobs(ctx, o.DB, now.Add(-o.Policy.StaleAfter), now)
	if n > 0 {
		o.Log.Warn().Int64("jobs", n).Msg("stale summarization jobs reset")
	}
	return n, err
}

// run executes a claimed job and always returns the chat to idle.
func (o *Orchestrator) run(ctx context.Context, j job) (*domain.Summary, error) {
	ctx, span := otel.Tracer("services/Orchestrator").Start(ctx, "Summarize",
		trace.WithAttributes(
			attribute.String("chat.id", j.ChatID),
			attribute.String("job.id", j.JobID),
			attribute.Int64("summary.base_version", j.BaseVersion),
		),
	)
	defer span.End()

	sum, jobErr := o.summarize(ctx, j)

	if _, err := repo.FinishSummarization(context.WithoutCancel(ctx), o.DB, j.ChatID, j.JobID, jobErr, o.now()); err != nil {
		o.Log.Error().Err(err).Str("chat_id", j.ChatID).Str("job_id", j.JobID).Msg("finish summarization")
	}

	switch {
	case jobErr != nil:
		span.RecordError(jobErr)
		observability.Summarization("failed")
		o.Log.Error().Err(jobErr).Str("chat_id", j.ChatID).Str("job_id", j.JobID).Msg("summarization failed")
		if o.Notifier != nil {
			err := o.Notifier.Notify(context.WithoutCancel(ctx), events.Event{
				Type:   events.SummarizationFailed,
				UserID: j.TriggeredBy,
				ChatID: j.ChatID,
				Data:   map[string]any{"job_id": j.JobID, "error": jobErr.Error()},
				At:     o.now(),
			})
			if err != nil {
				o.Log.Warn().Err(err).Msg("notify failed")
			}
		}
		if errors.Is(jobErr, ErrInvariantViolation) {
			return nil, jobErr
		}
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, jobErr)
	case sum == nil:
		observability.Summarization("skipped")
	default:
		observability.Summarization("succeeded")
		span.SetAttributes(attribute.Int64("summary.version", sum.Version))
	}
	return sum, nil
}

func (o *Orchestrator) summarize(ctx context.Context, j job) (*domain.Summary, error) {
	latest, err := o.Store.Latest(ctx, j.ChatID)
	if err != nil {
		return nil, err
	}
	if versionOf(latest) > j.BaseVersion {
		o.Log.Debug().Str("chat_id", j.ChatID).Msg("summary superseded, job dropped")
		return nil, nil
	}

	var (
		at      *time.Time
		id      string
		covered int
	)
	if latest != nil {
		at, id, covered = &latest.WatermarkCreatedAt, latest.WatermarkMessageID, latest.CoveredMessageCount
	}
	msgs, err := repo.ListMessagesAfter(ctx, o.DB, j.ChatID, at, id)
	if err != nil {
		return nil, err
	}
	keep := max(o.Policy.RetainTail, 0)
	if len(msgs) <= keep {
		return nil, nil
	}
	batch := msgs[:len(msgs)-keep]

	prompt := toPrompt(latest, batch)
	callCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := o.LLM.Send(callCtx, summarizerPrompt, prompt)
	observability.LMCall("summarization", start, err)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, errors.New("empty summary from model")
	}

	in, out := int64(resp.InputTokens), int64(resp.OutputTokens)
	if !resp.UsageReported {
		in = int64(o.Estimator.EstimateAll(promptTexts(summarizerPrompt, prompt)...))
		out = int64(o.Estimator.Estimate(text))
	}

	wm := batch[len(batch)-1]
	sum, err := o.Store.Append(ctx, AppendInput{
		ChatID:             j.ChatID,
		Text:               text,
		CoveredCount:       covered + len(batch),
		WatermarkMessageID: wm.ID,
		TokensSpent:        int(in + out),
	})
	if err != nil {
		return nil, err
	}

	if o.Ledger != nil {
		_, err := o.Ledger.Settle(context.WithoutCancel(ctx), ReconcileInput{
			CallID:       "summary:" + j.JobID,
			UserID:       o.SystemUserID,
			Category:     domain.CategorySummarization,
			InputTokens:  in,
			OutputTokens: out,
			Reported:     resp.UsageReported,
		})
		if err != nil {
			o.Log.Error().Err(err).Str("chat_id", j.ChatID).Msg("summarization cost not reconciled")
		}
	}
	if _, err := o.Store.Prune(ctx, j.ChatID, o.Policy.KeepVersions); err != nil {
		o.Log.Warn().Err(err).Str("chat_id", j.ChatID).Msg("prune summaries")
	}

	o.Log.Info().
		Str("chat_id", j.ChatID).
		Int64("version", sum.Version).
		Int("covered", sum.CoveredMessageCount).
		Str("watermark", sum.WatermarkMessageID).
		Msg("summary appended")
	return sum, nil
}

func versionOf(s *domain.Summary) int64 {
	if s == nil {
		return 0
	}
	return s.Version
}
