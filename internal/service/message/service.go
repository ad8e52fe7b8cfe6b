package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	chatmodel "converse/internal/model/chat"
	usermodel "converse/internal/model/user"
	chatservice "converse/internal/service/chat"
	"converse/internal/store"
)

var (
	ErrNotFound     = errors.New("chat not found")
	ErrForbidden    = errors.New("caller is not a chat member")
	ErrEmptyContent = errors.New("message content is required")
)

// Publisher receives every persisted message view for realtime fan-out.
// The realtime delivery coordinator implements it; a nil publisher simply
// disables server-side delivery.
type Publisher interface {
	Publish(msg chatmodel.MessageView)
}

// Service is the message log: it persists messages, keeps the owning chat's
// latest-message pointer current and hands persisted messages to the
// delivery coordinator.
type Service struct {
	messages  *store.MessageStore
	chats     *store.ChatStore
	users     *store.UserStore
	chatViews *chatservice.Service
	publisher Publisher
	log       *slog.Logger
}

func NewService(
	messages *store.MessageStore,
	chats *store.ChatStore,
	users *store.UserStore,
	chatViews *chatservice.Service,
	publisher Publisher,
	log *slog.Logger,
) *Service {
	return &Service{
		messages:  messages,
		chats:     chats,
		users:     users,
		chatViews: chatViews,
		publisher: publisher,
		log:       log,
	}
}

// Send persists a message from the caller into the chat. The message row
// and the chat's latest-message pointer are written in one transaction.
// The populated view is returned to the sender and published for delivery
// to the remaining members.
func (s *Service) Send(ctx context.Context, senderID, chatID, content string) (chatmodel.MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chatmodel.MessageView{}, ErrEmptyContent
	}

	c, err := s.chats.Get(chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chatmodel.MessageView{}, ErrNotFound
		}
		return chatmodel.MessageView{}, fmt.Errorf("load chat: %w", err)
	}
	if !c.HasMember(senderID) {
		return chatmodel.MessageView{}, ErrForbidden
	}

	m := chatmodel.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Append(m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chatmodel.MessageView{}, ErrNotFound
		}
		if errors.Is(err, store.ErrNotMember) {
			return chatmodel.MessageView{}, ErrForbidden
		}
		return chatmodel.MessageView{}, fmt.Errorf("append message: %w", err)
	}

	// Mirror what Append committed so the view reflects the new state
	// without a second read.
	latest := m
	c.LatestMessage = &latest
	c.UpdatedAt = m.CreatedAt

	view, err := s.populate(ctx, m, c)
	if err != nil {
		return chatmodel.MessageView{}, err
	}

	if s.publisher != nil {
		s.publisher.Publish(view)
	}
	s.log.Debug("message sent", "chat", chatID, "message", m.ID, "sender", senderID)
	return view, nil
}

// List returns every message in the chat in creation order, senders
// populated. Only members may read a chat's messages.
func (s *Service) List(ctx context.Context, callerID, chatID string) ([]chatmodel.MessageView, error) {
	c, err := s.chats.Get(chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if !c.HasMember(callerID) {
		return nil, ErrForbidden
	}

	messages, err := s.messages.ListByChat(chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	chatView, err := s.chatViews.View(ctx, c)
	if err != nil {
		return nil, err
	}
	senders := make(map[string]usermodel.Summary)
	for _, u := range chatView.Users {
		senders[u.ID] = u
	}

	views := make([]chatmodel.MessageView, 0, len(messages))
	for _, m := range messages {
		sender, ok := senders[m.SenderID]
		if !ok {
			// Sender may have left the chat since; resolve directly.
			u, err := s.users.GetByID(m.SenderID)
			if err != nil {
				return nil, fmt.Errorf("populate sender %s: %w", m.SenderID, err)
			}
			sender = u.Summary()
			senders[m.SenderID] = sender
		}
		views = append(views, chatmodel.MessageView{
			ID:        m.ID,
			Sender:    sender,
			Content:   m.Content,
			Chat:      &chatView,
			CreatedAt: m.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) populate(ctx context.Context, m chatmodel.Message, c chatmodel.Chat) (chatmodel.MessageView, error) {
	sender, err := s.users.GetByID(m.SenderID)
	if err != nil {
		return chatmodel.MessageView{}, fmt.Errorf("populate sender: %w", err)
	}
	chatView, err := s.chatViews.View(ctx, c)
	if err != nil {
		return chatmodel.MessageView{}, err
	}
	return chatmodel.MessageView{
		ID:        m.ID,
		Sender:    sender.Summary(),
		Content:   m.Content,
		Chat:      &chatView,
		CreatedAt: m.CreatedAt,
	}, nil
}
