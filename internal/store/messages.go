package store

import (
	"encoding/json"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"converse/internal/model/chat"
)

// MessageStore is the append-only message log. Appending a message also
// moves the owning chat's latest-message pointer in the same transaction,
// so the pointer can never go stale relative to the log.
type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

func (s *MessageStore) Append(m chat.Message) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var c chat.Chat
		if err := getJSON(txn, chatKey(m.ChatID), &c); err != nil {
			return err
		}
		// Membership is re-checked on the transaction's own read of the
		// chat, so a concurrent removal cannot slip a message in.
		if !c.HasMember(m.SenderID) {
			return ErrNotMember
		}
		if err := setJSON(txn, msgKey(m.ChatID, m.CreatedAt, m.ID), m); err != nil {
			return err
		}
		latest := m
		c.LatestMessage = &latest
		c.UpdatedAt = m.CreatedAt
		return setJSON(txn, chatKey(c.ID), c)
	})
}

// ListByChat returns the chat's messages in creation order. The padded
// timestamp in the key makes the forward prefix scan chronological.
func (s *MessageStore) ListByChat(chatID string) ([]chat.Message, error) {
	messages := make([]chat.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := msgPrefix(chatID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m chat.Message
			if err := it.Item().Value(func(raw []byte) error {
				return json.Unmarshal(raw, &m)
			}); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}
