package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-groupchat-backend/internal/services"
)

// Error codes returned in ErrorResponse.Code. Clients branch on these, not
// on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeQuotaExceeded      = "quota_exceeded"
	ErrCodeSummaryInFlight    = "summarization_in_progress"
	ErrCodeSummaryFailed      = "summarization_failed"
	ErrCodeAssistantFailed    = "assistant_unavailable"
	ErrCodeLedgerUnavailable  = "ledger_unavailable"
	ErrCodeInvariantViolation = "invariant_violation"
	ErrCodeInvalidContextMode = "invalid_context_mode"
	ErrCodeInvalidMember      = "invalid_member"
	ErrCodeMessageTooLong     = "message_too_long"
	ErrCodeEmptyMessage       = "empty_message"
)

// failErr maps a service error onto the HTTP error envelope.
func failErr(c *gin.Context, err error) {
	var quota *services.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, QuotaErrorResponse{
			ErrorResponse: ErrorResponse{
				RequestID: requestID(c),
				Code:      ErrCodeQuotaExceeded,
				Message:   "monthly token quota exhausted",
			},
			Remaining: quota.Remaining,
			Quota:     quota.Quota,
		})
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "admin role required")
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeEmptyMessage, "content required")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeMessageTooLong, "content too long")
	case errors.Is(err, services.ErrInvalidMember):
		fail(c, http.StatusBadRequest, ErrCodeInvalidMember, "user_id required and role must be admin or member")
	case errors.Is(err, services.ErrInvalidSettings):
		fail(c, http.StatusBadRequest, ErrCodeInvalidContextMode, "mode must be none, command_only or all_messages")
	case errors.Is(err, services.ErrSummarizationInFlight):
		fail(c, http.StatusConflict, ErrCodeSummaryInFlight, "a summary is already being generated")
	case errors.Is(err, services.ErrLedgerUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeLedgerUnavailable, "token ledger unavailable, try again later")
	case errors.Is(err, services.ErrInvariantViolation):
		fail(c, http.StatusInternalServerError, ErrCodeInvariantViolation, err.Error())
	case errors.Is(err, services.ErrSummarizationFailed):
		fail(c, http.StatusBadGateway, ErrCodeSummaryFailed, "summarization failed")
	case errors.Is(err, services.ErrProviderUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeAssistantFailed, "assistant unavailable")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
