// Context, summary and balance handlers.
//
//   - GET  /chats/{id}/context     (what the assistant would see now)
//   - POST /chats/{id}/summaries   (summarize now)
//   - GET  /chats/{id}/summaries   (retained summary versions, newest first)
//   - GET  /me/balance             (caller's token balance this period)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/http/middleware"
	"github.com/tbourn/go-groupchat-backend/internal/utils"
)

const maxSummaryHistory = 50

// SummaryResponse reports a forced summarization. Summary is null when no
// new messages needed summarizing.
type SummaryResponse struct {
	Summary *domain.Summary `json:"summary"`
}

// ListSummariesResponse lists retained summary versions.
type ListSummariesResponse struct {
	Summaries []domain.Summary `json:"summaries"`
}

// GetContext godoc
// @ID          getContext
// @Summary     Preview the assistant context
// @Description Returns the context the assistant would receive for the next command: mode, summary, message window
// @Description and estimated token cost, plus a plain-text rendering.
// @Tags        Context
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller identity"  example(alice)
// @Param       id         path    string  true  "Chat ID (UUID)"   format(uuid)
// @Success     200  {object}  services.ContextPreview
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/context [get]
func (h *Handlers) GetContext(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid || !h.requireMember(c, chatID) {
		return
	}
	p, err := h.d.Context.Preview(c.Request.Context(), chatID, h.d.MaxMessages)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ForceSummary godoc
// @ID          forceSummary
// @Summary     Summarize now
// @Description Summarizes the messages after the current watermark immediately. The caller's request is
// @Description refused with 409 while another summarization for the chat is scheduled or running.
// @Tags        Summaries
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller identity"  example(alice)
// @Param       id         path    string  true  "Chat ID (UUID)"   format(uuid)
// @Success     201  {object}  handlers.SummaryResponse  "New summary version"
// @Success     200  {object}  handlers.SummaryResponse  "Nothing new to summarize"
// @Failure     404  {object}  handlers.ErrorResponse    "Chat not found"
// @Failure     409  {object}  handlers.ErrorResponse    "Summarization in progress"
// @Failure     502  {object}  handlers.ErrorResponse    "Summarization failed"
// @Router      /chats/{id}/summaries [post]
func (h *Handlers) ForceSummary(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid || !h.requireMember(c, chatID) {
		return
	}
	sum, err := h.d.Summaries.ForceSummarize(c.Request.Context(), chatID, middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusCreated
	if sum == nil {
		status = http.StatusOK
	}
	ok(c, status, SummaryResponse{Summary: sum})
}

// ListSummaries godoc
// @ID          listSummaries
// @Summary     List summary versions
// @Description Returns the retained summary versions of the chat, newest first.
// @Tags        Summaries
// @Produce     json
// @Param       X-User-ID  header  string  true   "Caller identity"  example(alice)
// @Param       id         path    string  true   "Chat ID (UUID)"   format(uuid)
// @Param       limit      query   int     false  "Maximum versions" minimum(1) maximum(50) default(10)
// @Success     200  {object}  handlers.ListSummariesResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/summaries [get]
func (h *Handlers) ListSummaries(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid || !h.requireMember(c, chatID) {
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 10)
	if limit < 1 {
		limit = 1
	}
	if limit > maxSummaryHistory {
		limit = maxSummaryHistory
	}
	items, err := h.d.History.History(c.Request.Context(), chatID, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Summary{}
	}
	ok(c, http.StatusOK, ListSummariesResponse{Summaries: items})
}

// GetBalance godoc
// @ID          getBalance
// @Summary     Token balance
// @Description Returns the caller's quota, usage, open reservations and per-category spend for the current month.
// @Tags        Tokens
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller identity"  example(alice)
// @Success     200  {object}  services.Balance
// @Failure     503  {object}  handlers.ErrorResponse  "Ledger unavailable"
// @Router      /me/balance [get]
func (h *Handlers) GetBalance(c *gin.Context) {
	b, err := h.d.Balances.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}
