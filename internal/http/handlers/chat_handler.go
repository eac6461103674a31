// Chat HTTP handlers.
//
// This file exposes chat, membership and context-settings endpoints:
//   - POST /chats                 (create, caller becomes admin)
//   - GET  /chats                 (list the caller's chats, paginated)
//   - POST /chats/{id}/members    (admin adds a member)
//   - GET  /chats/{id}/settings   (read context settings)
//   - PUT  /chats/{id}/settings   (admin changes context settings)
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/http/middleware"
	"github.com/tbourn/go-groupchat-backend/internal/services"
	"github.com/tbourn/go-groupchat-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService covers chat lifecycle, membership and settings.
type ChatService interface {
	Create(ctx context.Context, ownerID, title string) (*domain.Chat, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	AddMember(ctx context.Context, adminID, chatID, userID, role string) (*domain.ChatMember, error)
	GetSettings(ctx context.Context, userID, chatID string) (domain.ContextSettings, error)
	UpdateSettings(ctx context.Context, adminID, chatID string, mode domain.ContextMode, useSummary bool) (domain.ContextSettings, error)
}

// MessageService posts messages, lists them and replays idempotent posts.
type MessageService interface {
	Post(ctx context.Context, userID, chatID, content string) (*services.PostResult, error)
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
	Remember(ctx context.Context, userID, chatID, key, messageID string) error
	Replay(ctx context.Context, userID, chatID, messageID string) (*services.PostResult, error)
}

// ContextPreviewer renders what the assistant would currently see.
type ContextPreviewer interface {
	Preview(ctx context.Context, chatID string, maxMessages int) (*services.ContextPreview, error)
}

// SummaryForcer runs an immediate summarization.
type SummaryForcer interface {
	ForceSummarize(ctx context.Context, chatID, userID string) (*domain.Summary, error)
}

// SummaryHistory lists retained summary versions.
type SummaryHistory interface {
	History(ctx context.Context, chatID string, limit int) ([]domain.Summary, error)
}

// BalanceReader reports a user's token balance.
type BalanceReader interface {
	Balance(ctx context.Context, userID string) (*services.Balance, error)
}

// MessageStats feeds the message-list ETag: count and newest timestamp.
type MessageStats func(ctx context.Context, chatID string) (int64, *time.Time, error)

//
// Handler wiring
//

// Deps are the collaborators of Handlers. Stats and MaxPromptRunes are
// optional.
type Deps struct {
	Chats     ChatService
	Messages  MessageService
	Context   ContextPreviewer
	Summaries SummaryForcer
	History   SummaryHistory
	Balances  BalanceReader
	Stats     MessageStats

	// MaxMessages bounds context previews; 0 uses the selector default.
	MaxMessages int
	// MaxPromptRunes rejects oversize posts at the edge.
	MaxPromptRunes int
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	d Deps
}

// New returns Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{d: d}
}

// chatParam validates the :id path parameter.
func chatParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return "", false
	}
	return id, true
}

// requireMember aborts with 404 unless the caller belongs to chatID.
// Non-members cannot tell a foreign chat from a missing one.
func (h *Handlers) requireMember(c *gin.Context, chatID string) bool {
	member, err := h.d.Chats.IsMember(c.Request.Context(), chatID, middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return false
	}
	if !member {
		failErr(c, services.ErrChatNotFound)
		return false
	}
	return true
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// Title optionally sets the chat title; it is derived from the first
	// message when empty.
	Title string `json:"title" example:"Trip planning"`
}

// ListChatsResponse wraps a page of chats.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination utils.Page    `json:"pagination"`
}

// AddMemberRequest adds a user to a chat.
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required" example:"bob"`
	// Role is admin or member; member when empty.
	Role string `json:"role" example:"member"`
}

// UpdateSettingsRequest changes a chat's context policy. UseSummary keeps
// its current value when omitted.
type UpdateSettingsRequest struct {
	Mode       domain.ContextMode `json:"mode" binding:"required" example:"command_only"`
	UseSummary *bool              `json:"use_summary,omitempty" example:"true"`
}

//
// Handlers
//

// CreateChat godoc
// @ID          createChat
// @Summary     Create a chat
// @Description Creates a group chat; the caller becomes its admin.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller identity"  example(alice)
// @Param       body       body    handlers.CreateChatRequest  false  "Create chat payload"
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	ch, err := h.d.Chats.Create(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(req.Title))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats
// @Description Returns a page of the chats the caller belongs to, newest first.
// @Tags        Chats
// @Produce     json
// @Param       X-User-ID  header  string  true   "Caller identity"  example(alice)
// @Param       page       query   int     false  "Page number"      minimum(1) default(1)
// @Param       page_size  query   int     false  "Items per page"   minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListChatsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"))
	items, total, err := h.d.Chats.ListPage(c.Request.Context(), middleware.UserID(c), p.Page, p.PageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Chat{}
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: p.WithTotal(total)})
}

// AddMember godoc
// @ID          addMember
// @Summary     Add a chat member
// @Description Adds a user to the chat, or changes their role. Admins only.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller identity (admin)"  example(alice)
// @Param       id         path    string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body       body    handlers.AddMemberRequest  true  "Member"
// @Success     201  {object}  domain.ChatMember
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/members [post]
func (h *Handlers) AddMember(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid {
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}
	m, err := h.d.Chats.AddMember(c.Request.Context(), middleware.UserID(c), chatID, strings.TrimSpace(req.UserID), req.Role)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// GetSettings godoc
// @ID          getContextSettings
// @Summary     Read context settings
// @Description Returns the chat's context mode and whether summaries are used.
// @Tags        Context
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller identity"  example(alice)
// @Param       id         path    string  true  "Chat ID (UUID)"   format(uuid)
// @Success     200  {object}  domain.ContextSettings
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid {
		return
	}
	s, err := h.d.Chats.GetSettings(c.Request.Context(), middleware.UserID(c), chatID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}

// UpdateSettings godoc
// @ID          updateContextSettings
// @Summary     Change context settings
// @Description Sets the context mode (none, command_only, all_messages) and summary use. Admins only.
// @Tags        Context
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller identity (admin)"  example(alice)
// @Param       id         path    string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body       body    handlers.UpdateSettingsRequest  true  "Settings"
// @Success     200  {object}  domain.ContextSettings
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid mode"
// @Failure     403  {object}  handlers.ErrorResponse  "Not an admin"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/settings [put]
func (h *Handlers) UpdateSettings(c *gin.Context) {
	chatID, valid := chatParam(c)
	if !valid {
		return
	}
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mode required")
		return
	}
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	var useSummary bool
	if req.UseSummary != nil {
		useSummary = *req.UseSummary
	} else {
		cur, err := h.d.Chats.GetSettings(ctx, uid, chatID)
		if err != nil {
			failErr(c, err)
			return
		}
		useSummary = cur.UseSummary
	}

	s, err := h.d.Chats.UpdateSettings(ctx, uid, chatID, req.Mode, useSummary)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}
