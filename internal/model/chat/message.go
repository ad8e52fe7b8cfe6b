package chat

import (
	"time"

	"converse/internal/model/user"
)

// Message is the stored message record. Immutable once written; the only
// side effect of a new message is the owning chat's latest-message pointer.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageView is the populated projection of a message: sender resolved to
// a summary and, where the caller needs it, the owning chat expanded so the
// realtime layer can address every member.
type MessageView struct {
	ID        string       `json:"_id"`
	Sender    user.Summary `json:"sender"`
	Content   string       `json:"content"`
	Chat      *View        `json:"chat,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
