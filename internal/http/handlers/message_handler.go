// Message HTTP handlers.
//
// This file exposes:
//   - POST /chats/{id}/messages   (post a message; commands run here)
//   - GET  /chats/{id}/messages   (list messages, paginated, ETag support)
//
// Idempotency: when a client repeats a post with the same Idempotency-Key,
// the stored message and its reply are returned with
// Idempotency-Replayed: true. Nothing is stored or charged twice.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/http/middleware"
	"github.com/tbourn/go-groupchat-backend/internal/utils"
)

// PostMessageRequest is the JSON payload for posting a message. Text that
// starts with /ask, /wiki, /summarize, /context or /balance is a command.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required,min=1" example:"/ask where should we go in May?"`
}

// ListMessagesResponse contains a page of chat messages.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination utils.Page       `json:"pagination"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes line endings, collapses blank-line runs and
// trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Post a message
// @Description Appends a message to the chat. Assistant commands (/ask, /wiki) reserve tokens
// @Description against the caller's monthly quota, call the model and return the reply with its usage.
// @Description /summarize, /context and /balance return the summary, the context preview and the balance.
// @Description Supports safe retries via the Idempotency-Key header.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  true   "Caller identity"  example(alice)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true   "Chat ID (UUID)"   format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Message"
// @Success     201  {object}  services.PostResult          "Posted"
// @Success     200  {object}  services.PostResult          "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse       "Bad request"
// @Failure     402  {object}  handlers.QuotaErrorResponse  "Token quota exceeded"
// @Failure     404  {object}  handlers.ErrorResponse       "Chat not found"
// @Failure     503  {object}  handlers.ErrorResponse       "Ledger unavailable"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	if prev := middleware.ReplayOf(c); prev != "" {
		res, err := h.d.Messages.Replay(ctx, uid, chatID, prev)
		if err == nil {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, res)
			return
		}
		middleware.LoggerFrom(c).Warn().Err(err).Str("message_id", prev).Msg("idempotent replay failed")
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeEmptyMessage, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeEmptyMessage, "content required")
		return
	}
	if limit := h.d.MaxPromptRunes; limit > 0 && utf8.RuneCountInString(content) > limit {
		fail(c, http.StatusBadRequest, ErrCodeMessageTooLong, fmt.Sprintf("content too long: max %d runes", limit))
		return
	}

	res, err := h.d.Messages.Post(ctx, uid, chatID, content)
	if err != nil {
		failErr(c, err)
		return
	}

	if key, has := middleware.IdempotencyKey(c); has {
		if err := h.d.Messages.Remember(ctx, uid, chatID, key, res.Message.ID); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency key")
		}
	}
	ok(c, http.StatusCreated, res)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages
// @Description Returns a page of the chat's messages in conversation order. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID      header  string  true   "Caller identity"  example(alice)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       id             path    string  true   "Chat ID (UUID)"   format(uuid)
// @Param       page           query   int     false  "Page number"      minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"   minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Header      200  {string}  ETag  "Weak ETag for the chat's message set"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid || !h.requireMember(c, chatID) {
		return
	}
	ctx := c.Request.Context()
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"))

	// Best effort: a stats failure only disables the ETag.
	if h.d.Stats != nil {
		if count, latest, err := h.d.Stats(ctx, chatID); err == nil {
			var ts int64
			if latest != nil {
				ts = latest.UnixNano()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, chatID, count, ts, p.Page, p.PageSize)
			c.Header("ETag", etag)
			if c.GetHeader("If-None-Match") == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.d.Messages.ListPage(ctx, middleware.UserID(c), chatID, p.Page, p.PageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: p.WithTotal(total)})
}
