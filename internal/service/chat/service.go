package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	chatmodel "converse/internal/model/chat"
	usermodel "converse/internal/model/user"
	"converse/internal/store"
)

var (
	ErrNotFound      = errors.New("chat not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrForbidden     = errors.New("operation not allowed")
	ErrNotGroup      = errors.New("chat is not a group chat")
	ErrSelfChat      = errors.New("cannot open a direct chat with yourself")
	ErrNameRequired  = errors.New("group name is required")
	ErrTooFewMembers = errors.New("a group chat needs at least 2 other members")
)

// Service resolves direct chats and manages group chats.
type Service struct {
	chats *store.ChatStore
	users *store.UserStore
	log   *slog.Logger
}

func NewService(chats *store.ChatStore, users *store.UserStore, log *slog.Logger) *Service {
	return &Service{chats: chats, users: users, log: log}
}

// ResolveDirect returns the unique direct chat between the caller and the
// target user, creating it when absent. Uniqueness per unordered pair is
// enforced by the store's pair index, so two concurrent calls for the same
// pair cannot both create.
func (s *Service) ResolveDirect(ctx context.Context, callerID, targetID string) (chatmodel.View, error) {
	if targetID == callerID {
		return chatmodel.View{}, ErrSelfChat
	}
	if _, err := s.users.GetByID(targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chatmodel.View{}, ErrUserNotFound
		}
		return chatmodel.View{}, fmt.Errorf("load target user: %w", err)
	}

	now := time.Now().UTC()
	c, created, err := s.chats.EnsureDirect(callerID, targetID, func() chatmodel.Chat {
		return chatmodel.Chat{
			ID:        uuid.NewString(),
			IsGroup:   false,
			Members:   chatmodel.MemberSet(callerID, targetID),
			CreatedAt: now,
			UpdatedAt: now,
		}
	})
	if err != nil {
		return chatmodel.View{}, fmt.Errorf("resolve direct chat: %w", err)
	}
	if created {
		s.log.Info("direct chat created", "chat", c.ID, "caller", callerID, "target", targetID)
	}
	return s.View(ctx, c)
}

// ListForUser returns every chat the user belongs to, populated and sorted
// by most recent activity first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]chatmodel.View, error) {
	chats, err := s.chats.ListByMember(userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})

	views := make([]chatmodel.View, 0, len(chats))
	for _, c := range chats {
		view, err := s.View(ctx, c)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// CreateGroup creates a group chat with the caller as admin. At least two
// distinct invitees besides the caller are required.
func (s *Service) CreateGroup(ctx context.Context, callerID, name string, memberIDs []string) (chatmodel.View, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chatmodel.View{}, ErrNameRequired
	}
	invitees := lo.Filter(chatmodel.MemberSet(memberIDs...), func(id string, _ int) bool {
		return id != callerID
	})
	if len(invitees) < 2 {
		return chatmodel.View{}, ErrTooFewMembers
	}
	for _, id := range invitees {
		if _, err := s.users.GetByID(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return chatmodel.View{}, ErrUserNotFound
			}
			return chatmodel.View{}, fmt.Errorf("load invitee: %w", err)
		}
	}

	now := time.Now().UTC()
	c := chatmodel.Chat{
		ID:        uuid.NewString(),
		Name:      name,
		IsGroup:   true,
		Members:   chatmodel.MemberSet(append(invitees, callerID)...),
		AdminID:   callerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chats.Create(c); err != nil {
		return chatmodel.View{}, fmt.Errorf("create group: %w", err)
	}

	s.log.Info("group created", "chat", c.ID, "admin", callerID, "members", len(c.Members))
	return s.View(ctx, c)
}

// Rename changes a group chat's name. Any member may rename; restricting
// the control to the admin is left to clients.
func (s *Service) Rename(ctx context.Context, callerID, chatID, name string) (chatmodel.View, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chatmodel.View{}, ErrNameRequired
	}
	c, err := s.getGroup(chatID)
	if err != nil {
		return chatmodel.View{}, err
	}
	if !c.HasMember(callerID) {
		return chatmodel.View{}, ErrForbidden
	}

	c.Name = name
	c.UpdatedAt = time.Now().UTC()
	if err := s.chats.Update(c); err != nil {
		return chatmodel.View{}, fmt.Errorf("rename group: %w", err)
	}
	return s.View(ctx, c)
}

// AddMember adds a user to a group chat. Only the admin may add, and adding
// an existing member is a no-op.
func (s *Service) AddMember(ctx context.Context, callerID, chatID, userID string) (chatmodel.View, error) {
	c, err := s.getGroup(chatID)
	if err != nil {
		return chatmodel.View{}, err
	}
	if callerID != c.AdminID {
		return chatmodel.View{}, ErrForbidden
	}
	if _, err := s.users.GetByID(userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chatmodel.View{}, ErrUserNotFound
		}
		return chatmodel.View{}, fmt.Errorf("load user: %w", err)
	}

	if c.AddMember(userID) {
		c.UpdatedAt = time.Now().UTC()
		if err := s.chats.Update(c); err != nil {
			return chatmodel.View{}, fmt.Errorf("add member: %w", err)
		}
	}
	return s.View(ctx, c)
}

// RemoveMember removes a user from a group chat. A non-admin may only
// remove themself; the admin may remove anyone except themself.
func (s *Service) RemoveMember(ctx context.Context, callerID, chatID, userID string) (chatmodel.View, error) {
	c, err := s.getGroup(chatID)
	if err != nil {
		return chatmodel.View{}, err
	}
	if !c.HasMember(callerID) {
		return chatmodel.View{}, ErrForbidden
	}
	if callerID == c.AdminID {
		if userID == callerID {
			return chatmodel.View{}, ErrForbidden
		}
	} else if userID != callerID {
		return chatmodel.View{}, ErrForbidden
	}
	if !c.RemoveMember(userID) {
		return chatmodel.View{}, ErrUserNotFound
	}

	c.UpdatedAt = time.Now().UTC()
	if err := s.chats.Update(c); err != nil {
		return chatmodel.View{}, fmt.Errorf("remove member: %w", err)
	}
	return s.View(ctx, c)
}

// View assembles the populated projection of a chat: member and admin
// summaries plus the latest message with its sender resolved.
func (s *Service) View(_ context.Context, c chatmodel.Chat) (chatmodel.View, error) {
	members := make([]usermodel.Summary, 0, len(c.Members))
	byID := make(map[string]usermodel.Summary, len(c.Members))
	for _, id := range c.Members {
		u, err := s.users.GetByID(id)
		if err != nil {
			return chatmodel.View{}, fmt.Errorf("populate member %s: %w", id, err)
		}
		summary := u.Summary()
		members = append(members, summary)
		byID[id] = summary
	}

	view := chatmodel.View{
		ID:        c.ID,
		Name:      c.Name,
		IsGroup:   c.IsGroup,
		Users:     members,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.AdminID != "" {
		admin, ok := byID[c.AdminID]
		if !ok {
			u, err := s.users.GetByID(c.AdminID)
			if err != nil {
				return chatmodel.View{}, fmt.Errorf("populate admin: %w", err)
			}
			admin = u.Summary()
		}
		view.Admin = &admin
	}
	if c.LatestMessage != nil {
		sender, ok := byID[c.LatestMessage.SenderID]
		if !ok {
			u, err := s.users.GetByID(c.LatestMessage.SenderID)
			if err != nil {
				return chatmodel.View{}, fmt.Errorf("populate latest sender: %w", err)
			}
			sender = u.Summary()
		}
		view.LatestMessage = &chatmodel.MessageView{
			ID:        c.LatestMessage.ID,
			Sender:    sender,
			Content:   c.LatestMessage.Content,
			CreatedAt: c.LatestMessage.CreatedAt,
		}
	}
	return view, nil
}

func (s *Service) getGroup(chatID string) (chatmodel.Chat, error) {
	c, err := s.chats.Get(chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chatmodel.Chat{}, ErrNotFound
		}
		return chatmodel.Chat{}, fmt.Errorf("load chat: %w", err)
	}
	if !c.IsGroup {
		return chatmodel.Chat{}, ErrNotGroup
	}
	return c, nil
}
