// Package services – ChatService
//
// This file implements the ChatService, which manages chats, their members
// and per-chat context settings. Membership is the access rule: only members
// see a chat, and only admins change its members or settings.
//
// Service-level errors (e.g., ErrChatNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
)

const (
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"
)

// ChatService provides chat-level operations.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale drives casing of generated titles.
	TitleLocale language.Tag
}

// NewChatService constructs a ChatService with sane defaults for title handling.
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{
		DB:          db,
		TitleMaxLen: 60,
		TitleLocale: language.English,
	}
}

// Create inserts a chat owned by ownerID. The owner becomes its admin.
func (s *ChatService) Create(ctx context.Context, ownerID, title string) (*domain.Chat, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", ownerID)),
	)
	defer span.End()

	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleNew
	}
	return repo.CreateChat(ctx, s.DB, ownerID, s.clip(title))
}

// Get returns chatID if userID is a member.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	if err := s.requireRole(ctx, chatID, userID, ""); err != nil {
		return nil, err
	}
	c, err := repo.GetChat(ctx, s.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	return c, err
}

// IsMember reports whether userID belongs to chatID.
func (s *ChatService) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	_, err := repo.GetMember(ctx, s.DB, chatID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// AddMember adds userID to chatID, or changes its role. Only admins may do
// this.
func (s *ChatService) AddMember(ctx context.Context, adminID, chatID, userID, role string) (*domain.ChatMember, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "AddMember",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", adminID),
			attribute.String("member.id", userID),
		),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if role == "" {
		role = domain.RoleMember
	}
	if userID == "" || (role != domain.RoleMember && role != domain.RoleAdmin) {
		return nil, ErrInvalidMember
	}
	if err := s.requireRole(ctx, chatID, adminID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return repo.AddMember(ctx, s.DB, chatID, userID, role)
}

// GetSettings returns the context settings of chatID for a member.
func (s *ChatService) GetSettings(ctx context.Context, userID, chatID string) (domain.ContextSettings, error) {
	if err := s.requireRole(ctx, chatID, userID, ""); err != nil {
		return domain.ContextSettings{}, err
	}
	return repo.GetSettings(ctx, s.DB, chatID)
}

// UpdateSettings changes the context policy of chatID. Admins only.
func (s *ChatService) UpdateSettings(ctx context.Context, adminID, chatID string, mode domain.ContextMode, useSummary bool) (domain.ContextSettings, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "UpdateSettings",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("context.mode", string(mode)),
			attribute.Bool("context.use_summary", useSummary),
		),
	)
	defer span.End()

	if !mode.Valid() {
		return domain.ContextSettings{}, ErrInvalidSettings
	}
	if err := s.requireRole(ctx, chatID, adminID, domain.RoleAdmin); err != nil {
		return domain.ContextSettings{}, err
	}
	cs := domain.ContextSettings{ChatID: chatID, Mode: mode, UseSummary: useSummary, UpdatedAt: time.Now().UTC()}
	if err := repo.SaveSettings(ctx, s.DB, cs); err != nil {
		return domain.ContextSettings{}, err
	}
	return cs, nil
}

// ListPage returns a page of chats userID belongs to.
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// AutoTitle replaces a placeholder title with one derived from the first
// prompt. Failures are ignored by callers; the title is cosmetic.
func (s *ChatService) AutoTitle(ctx context.Context, chatID, prompt string) error {
	c, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		return err
	}
	if !isPlaceholderTitle(c.Title) {
		return nil
	}
	gen := s.titleFromPrompt(prompt)
	if gen == "" {
		return nil
	}
	return repo.UpdateChatTitle(ctx, s.DB, chatID, s.clip(gen))
}

// requireRole checks membership, and the role when role is set. Non-members
// get ErrChatNotFound so chats stay invisible to them.
func (s *ChatService) requireRole(ctx context.Context, chatID, userID, role string) error {
	m, err := repo.GetMember(ctx, s.DB, chatID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrChatNotFound
	}
	if err != nil {
		return err
	}
	if role != "" && m.Role != role {
		return ErrForbidden
	}
	return nil
}

// clip truncates a chat title to the configured maximum rune length.
func (s *ChatService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// titleFromPrompt derives a concise title from the prompt.
func (s *ChatService) titleFromPrompt(prompt string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(prompt), -1)
	tag := s.TitleLocale
	if tag == language.Und {
		tag = language.English
	}
	caser := cases.Title(tag)
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	return strings.Join(out, " ")
}

func isPlaceholderTitle(t string) bool {
	t = strings.TrimSpace(t)
	return t == "" || strings.EqualFold(t, defaultTitleNew) || strings.EqualFold(t, defaultTitleUntitled)
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var (
	// whitespaceRE collapses consecutive whitespace to a single space.
	whitespaceRE = regexp.MustCompile(`\s+`)
	// Letters with optional trailing digits (e.g., "q3").
	titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)
)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"what": {}, "how": {}, "we": {}, "our": {}, "can": {}, "you": {},
}
