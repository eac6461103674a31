// Package services – Ledger
//
// Ledger enforces per-user monthly token quotas. A call first reserves its
// estimated cost (CheckAndReserve), then settles exactly once by call id
// with the authoritative usage (Reconcile). Reservations that are never
// settled expire and are released by the watchdog (ReclaimExpired).
//
// Every balance mutation is a single conditional UPDATE, so overlapping calls
// of the same user cannot spend the same remaining tokens twice.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/events"
	"github.com/tbourn/go-groupchat-backend/internal/observability"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
)

// Decision is the result of a quota pre-check.
type Decision struct {
	Allowed   bool
	Remaining int64
	Quota     int64
	CallID    string
}

// ReconcileInput is the authoritative (or estimated, when Reported is false)
// usage of one finished call.
type ReconcileInput struct {
	CallID       string
	UserID       string
	Category     string
	InputTokens  int64
	OutputTokens int64
	Reported     bool
}

// Reconciliation reports what a Reconcile call did.
type Reconciliation struct {
	Duplicate bool  `json:"duplicate,omitempty"`
	Charged   int64 `json:"charged"`
	Remaining int64 `json:"remaining"`
	Quota     int64 `json:"quota"`
}

// Balance is a user's current-period account view.
type Balance struct {
	UserID     string           `json:"user_id"`
	Period     string           `json:"period"`
	Quota      int64            `json:"quota"`
	Used       int64            `json:"used"`
	Reserved   int64            `json:"reserved"`
	Remaining  int64            `json:"remaining"`
	ByCategory map[string]int64 `json:"by_category"`
}

// Ledger is the token budget controller.
type Ledger struct {
	DB       *gorm.DB
	Notifier events.Notifier
	Log      zerolog.Logger

	DefaultQuota   int64
	LowWaterMark   int64
	ReservationTTL time.Duration

	// SettleAttempts and SettleBackoff bound the retries of Settle.
	SettleAttempts uint
	SettleBackoff  time.Duration

	// Now is the clock; tests override it.
	Now func() time.Time
}

// NewLedger constructs a Ledger with the given quota policy.
func NewLedger(db *gorm.DB, n events.Notifier, log zerolog.Logger, defaultQuota, lowWaterMark int64, ttl time.Duration) *Ledger {
	return &Ledger{
		DB:             db,
		Notifier:       n,
		Log:            log.With().Str("component", "ledger").Logger(),
		DefaultQuota:   defaultQuota,
		LowWaterMark:   lowWaterMark,
		ReservationTTL: ttl,
		SettleAttempts: 4,
		SettleBackoff:  100 * time.Millisecond,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

var errDuplicateCall = errors.New("duplicate call")

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// CheckAndReserve creates the account lazily, then reserves estimated tokens
// if used + reserved + estimated stays within quota. A denied decision
// carries the remaining balance. An empty callID gets a fresh one.
func (l *Ledger) CheckAndReserve(ctx context.Context, userID, callID string, estimated int) (Decision, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "CheckAndReserve",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("tokens.estimated", estimated),
		),
	)
	defer span.End()

	if callID == "" {
		callID = uuid.NewString()
	}
	// Exhausted accounts must not pass with a zero estimate.
	amount := int64(estimated)
	if amount < 1 {
		amount = 1
	}
	now := l.now()
	period := domain.Period(now)

	dec := Decision{CallID: callID}
	err := repo.Transaction(ctx, l.DB, func(tx *gorm.DB) error {
		if err := repo.EnsureAccount(ctx, tx, userID, period, l.DefaultQuota); err != nil {
			return err
		}
		ok, err := repo.TryReserve(ctx, tx, userID, period, amount)
		if err != nil {
			return err
		}
		if ok {
			err = repo.CreateReservation(ctx, tx, &domain.TokenReservation{
				CallID:    callID,
				UserID:    userID,
				Period:    period,
				Category:  domain.CategoryChat,
				Status:    domain.ReservationReserved,
				Amount:    amount,
				CreatedAt: now,
				ExpiresAt: now.Add(l.ReservationTTL),
			})
			if err != nil {
				return err
			}
		}
		acc, err := repo.GetAccount(ctx, tx, userID, period)
		if err != nil {
			return err
		}
		dec.Allowed, dec.Remaining, dec.Quota = ok, acc.Remaining(), acc.Quota
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return Decision{}, fmt.Errorf("%w: call %s already reserved", ErrInvariantViolation, callID)
	}
	if err != nil {
		span.RecordError(err)
		return Decision{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	observability.LedgerDecision(dec.Allowed)
	span.SetAttributes(attribute.Bool("ledger.allowed", dec.Allowed), attribute.Int64("ledger.remaining", dec.Remaining))
	return dec, nil
}

// Reconcile settles a call exactly once. Repeated calls with the same call id
// are no-ops reporting Duplicate. Calls without a prior reservation (such as
// summarization) are charged directly.
func (l *Ledger) Reconcile(ctx context.Context, in ReconcileInput) (Reconciliation, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("call.id", in.CallID),
			attribute.String("user.id", in.UserID),
			attribute.String("ledger.category", in.Category),
		),
	)
	defer span.End()

	if in.CallID == "" {
		return Reconciliation{}, fmt.Errorf("%w: reconcile without call id", ErrInvariantViolation)
	}
	if in.Category == "" {
		in.Category = domain.CategoryChat
	}
	if in.InputTokens < 0 {
		in.InputTokens = 0
	}
	if in.OutputTokens < 0 {
		in.OutputTokens = 0
	}
	total := in.InputTokens + in.OutputTokens
	now := l.now()

	var (
		out    Reconciliation
		userID = in.UserID
	)
	err := repo.Transaction(ctx, l.DB, func(tx *gorm.DB) error {
		r, err := repo.GetReservation(ctx, tx, in.CallID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if in.UserID == "" {
				return fmt.Errorf("%w: call %s has no reservation and no user", ErrInvariantViolation, in.CallID)
			}
			period := domain.Period(now)
			if err := repo.EnsureAccount(ctx, tx, in.UserID, period, l.DefaultQuota); err != nil {
				return err
			}
			err = repo.CreateReservation(ctx, tx, &domain.TokenReservation{
				CallID:       in.CallID,
				UserID:       in.UserID,
				Period:       period,
				Category:     in.Category,
				Status:       domain.ReservationReconciled,
				InputTokens:  in.InputTokens,
				OutputTokens: in.OutputTokens,
				CreatedAt:    now,
				ExpiresAt:    now,
				SettledAt:    &now,
			})
			if errors.Is(err, repo.ErrDuplicate) {
				return errDuplicateCall
			}
			if err != nil {
				return err
			}
			return l.charge(ctx, tx, in.UserID, period, total, 0, &out)
		case err != nil:
			return err
		}

		if in.UserID != "" && r.UserID != in.UserID {
			return fmt.Errorf("%w: call %s belongs to another user", ErrInvariantViolation, in.CallID)
		}
		userID = r.UserID
		if r.Status == domain.ReservationReconciled {
			return errDuplicateCall
		}
		ok, err := repo.SettleReservation(ctx, tx, in.CallID, r.Status, domain.ReservationReconciled, in.InputTokens, in.OutputTokens, now)
		if err != nil {
			return err
		}
		if !ok {
			return errDuplicateCall
		}
		var release int64
		if r.Status == domain.ReservationReserved {
			release = r.Amount
		}
		return l.charge(ctx, tx, r.UserID, r.Period, total, release, &out)
	})
	switch {
	case errors.Is(err, errDuplicateCall):
		span.SetAttributes(attribute.Bool("ledger.duplicate", true))
		return Reconciliation{Duplicate: true}, nil
	case errors.Is(err, ErrInvariantViolation):
		span.RecordError(err)
		return Reconciliation{}, err
	case err != nil:
		span.RecordError(err)
		return Reconciliation{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	observability.TokensReconciled(in.Category, total, in.Reported)
	if out.Remaining > 0 && out.Remaining < l.LowWaterMark {
		l.notify(ctx, events.Event{
			Type:   events.LowBalance,
			UserID: userID,
			Data:   map[string]any{"remaining": out.Remaining, "quota": out.Quota},
			At:     now,
		})
	}
	return out, nil
}

func (l *Ledger) charge(ctx context.Context, tx *gorm.DB, userID, period string, total, release int64, out *Reconciliation) error {
	if err := repo.ApplyUsage(ctx, tx, userID, period, total, release); err != nil {
		return err
	}
	acc, err := repo.GetAccount(ctx, tx, userID, period)
	if err != nil {
		return err
	}
	out.Charged, out.Remaining, out.Quota = total, acc.Remaining(), acc.Quota
	return nil
}

// Settle reconciles in, retrying transient failures with the same call id.
// If every attempt fails, the usage is recorded on the open reservation so
// ReclaimExpired charges it later; the returned error is still the
// reconcile failure.
func (l *Ledger) Settle(ctx context.Context, in ReconcileInput) (Reconciliation, error) {
	attempts := l.SettleAttempts
	if attempts == 0 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if l.SettleBackoff > 0 {
		b.InitialInterval = l.SettleBackoff
	}
	b.MaxInterval = 5 * time.Second

	rec, err := backoff.Retry(ctx, func() (Reconciliation, error) {
		rec, err := l.Reconcile(ctx, in)
		if errors.Is(err, ErrInvariantViolation) {
			return rec, backoff.Permanent(err)
		}
		return rec, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.Log.Warn().Err(err).Str("call_id", in.CallID).Dur("retry_in", next).Msg("reconcile failed, retrying")
		}),
	)
	if err == nil {
		return rec, nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if errors.Is(err, ErrInvariantViolation) || in.UserID == "" {
		return Reconciliation{}, err
	}

	now := l.now()
	pending := &domain.TokenReservation{
		CallID:       in.CallID,
		UserID:       in.UserID,
		Period:       domain.Period(now),
		Category:     in.Category,
		Status:       domain.ReservationReserved,
		InputTokens:  max(in.InputTokens, 0),
		OutputTokens: max(in.OutputTokens, 0),
		CreatedAt:    now,
		ExpiresAt:    now,
	}
	if pending.Category == "" {
		pending.Category = domain.CategoryChat
	}
	if perr := repo.RecordPendingUsage(ctx, l.DB, pending); perr != nil {
		l.Log.Error().Err(perr).Str("call_id", in.CallID).
			Int64("tokens", pending.InputTokens+pending.OutputTokens).
			Msg("usage could not be recorded")
	}
	return Reconciliation{}, err
}

// Release settles an aborted call with zero usage.
func (l *Ledger) Release(ctx context.Context, userID, callID string) error {
	_, err := l.Reconcile(ctx, ReconcileInput{CallID: callID, UserID: userID, Category: domain.CategoryChat, Reported: true})
	return err
}

// ReclaimExpired settles reservations that outlived their TTL without being
// reconciled and returns how many were settled. Usage already recorded on a
// reservation is charged and the reservation counts as reconciled; the rest
// are released as expired.
func (l *Ledger) ReclaimExpired(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "ReclaimExpired")
	defer span.End()

	now := l.now()
	expired, err := repo.ListExpiredReservations(ctx, l.DB, now, 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range expired {
		used := r.InputTokens + r.OutputTokens
		to := domain.ReservationExpired
		if used > 0 {
			to = domain.ReservationReconciled
		}
		err := repo.Transaction(ctx, l.DB, func(tx *gorm.DB) error {
			ok, err := repo.SettleReservation(ctx, tx, r.CallID, domain.ReservationReserved, to, r.InputTokens, r.OutputTokens, now)
			if err != nil || !ok {
				return err
			}
			n++
			if err := repo.EnsureAccount(ctx, tx, r.UserID, r.Period, l.DefaultQuota); err != nil {
				return err
			}
			return repo.ApplyUsage(ctx, tx, r.UserID, r.Period, used, r.Amount)
		})
		if err != nil {
			return n, err
		}
		if used > 0 {
			observability.TokensReconciled(r.Category, used, false)
		}
		l.Log.Warn().Str("call_id", r.CallID).Str("user_id", r.UserID).
			Int64("amount", r.Amount).Int64("charged", used).Msg("reservation expired")
	}
	if n > 0 {
		observability.ReservationsReclaimed(n)
	}
	span.SetAttributes(attribute.Int("ledger.reclaimed", n))
	return n, nil
}

// Balance returns the current-period balance of userID, creating the
// account if needed.
func (l *Ledger) Balance(ctx context.Context, userID string) (*Balance, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "Balance",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	period := domain.Period(l.now())
	if err := repo.EnsureAccount(ctx, l.DB, userID, period, l.DefaultQuota); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	acc, err := repo.GetAccount(ctx, l.DB, userID, period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	usage, err := repo.UsageByCategory(ctx, l.DB, userID, period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	b := &Balance{
		UserID:     userID,
		Period:     period,
		Quota:      acc.Quota,
		Used:       acc.Used,
		Reserved:   acc.Reserved,
		Remaining:  acc.Remaining(),
		ByCategory: map[string]int64{domain.CategoryChat: 0, domain.CategorySummarization: 0},
	}
	for _, u := range usage {
		b.ByCategory[u.Category] = u.Tokens
	}
	return b, nil
}

func (l *Ledger) notify(ctx context.Context, e events.Event) {
	if l.Notifier == nil {
		return
	}
	if err := l.Notifier.Notify(ctx, e); err != nil {
		l.Log.Warn().Err(err).Str("event", string(e.Type)).Msg("notify failed")
	}
}
