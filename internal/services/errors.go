// Package services defines the business logic of the group chat: the token
// ledger, context selection and assembly, rolling summaries and the message
// flow that ties them to the assistant.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Chat and membership errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist or is not
	// visible to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrForbidden is returned when a member lacks the role an operation needs.
	ErrForbidden = errors.New("forbidden")

	// ErrEmptyMessage is returned when a posted message has no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a message exceeds the configured limit.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidMember is returned for a blank user id or unknown role.
	ErrInvalidMember = errors.New("invalid member")

	// ErrInvalidSettings is returned for an unknown context mode.
	ErrInvalidSettings = errors.New("invalid context settings")
)

// Controller errors.
var (
	// ErrQuotaExceeded is matched by *QuotaExceededError.
	ErrQuotaExceeded = errors.New("token quota exceeded")

	// ErrProviderUnavailable means the LM call failed. The message flow turns
	// it into a system message instead of returning it.
	ErrProviderUnavailable = errors.New("assistant unavailable")

	// ErrSummarizationFailed wraps failures of a summarization job.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrSummarizationInFlight is returned by a forced run while another job
	// for the chat is scheduled or running.
	ErrSummarizationInFlight = errors.New("summarization already in progress")

	// ErrInvariantViolation marks broken storage invariants such as a missing
	// watermark message, a rewinding watermark or a version conflict.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrLedgerUnavailable wraps storage failures of the token ledger. No LM
	// call proceeds without a quota decision.
	ErrLedgerUnavailable = errors.New("token ledger unavailable")
)

// QuotaExceededError carries the balance shown to the user.
type QuotaExceededError struct {
	Remaining int64
	Quota     int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("token quota exceeded: %d of %d tokens remaining", e.Remaining, e.Quota)
}

// Is makes errors.Is(err, ErrQuotaExceeded) hold.
func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }
