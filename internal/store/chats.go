package store

import (
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"converse/internal/model/chat"
)

// ChatStore persists conversation records together with two index families:
// a per-user membership index for chat listing, and the direct-pair index
// that makes direct chats unique per unordered user pair.
type ChatStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatStore(db *badger.DB, log *slog.Logger) *ChatStore {
	return &ChatStore{db: db, log: log}
}

func (s *ChatStore) Create(c chat.Chat) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return writeChat(txn, c, nil)
	})
}

func (s *ChatStore) Get(id string) (chat.Chat, error) {
	var c chat.Chat
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, chatKey(id), &c)
	})
	return c, err
}

// Update rewrites the chat record and reconciles the membership index with
// the previous membership set.
func (s *ChatStore) Update(c chat.Chat) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var prev chat.Chat
		if err := getJSON(txn, chatKey(c.ID), &prev); err != nil {
			return err
		}
		return writeChat(txn, c, prev.Members)
	})
}

// ListByMember returns every chat the user belongs to, unsorted.
func (s *ChatStore) ListByMember(userID string) ([]chat.Chat, error) {
	chats := make([]chat.Chat, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		var ids []string
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := memberPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(raw []byte) error {
				ids = append(ids, string(raw))
				return nil
			}); err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for _, id := range ids {
			var c chat.Chat
			if err := getJSON(txn, chatKey(id), &c); err != nil {
				return err
			}
			chats = append(chats, c)
		}
		return nil
	})
	return chats, err
}

// maxEnsureAttempts bounds retries when two callers race to create the same
// direct chat and badger's conflict detection aborts one of them.
const maxEnsureAttempts = 3

// EnsureDirect finds the direct chat for the unordered pair {a, b}, creating
// it with build() when absent. The lookup and the create happen in one
// transaction keyed on the pair index, so concurrent callers cannot both
// create: the loser commits with ErrConflict, retries, and finds the
// winner's chat.
func (s *ChatStore) EnsureDirect(a, b string, build func() chat.Chat) (chat.Chat, bool, error) {
	var (
		result  chat.Chat
		created bool
	)
	for attempt := 0; attempt < maxEnsureAttempts; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			result = chat.Chat{}
			created = false

			key := directKey(a, b)
			item, err := txn.Get(key)
			if err == nil {
				var id string
				if err := item.Value(func(raw []byte) error {
					id = string(raw)
					return nil
				}); err != nil {
					return err
				}
				return getJSON(txn, chatKey(id), &result)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			c := build()
			if err := writeChat(txn, c, nil); err != nil {
				return err
			}
			if err := txn.Set(key, []byte(c.ID)); err != nil {
				return err
			}
			result = c
			created = true
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			s.log.Debug("direct chat creation conflicted, retrying", "attempt", attempt+1)
			continue
		}
		return result, created, err
	}
	return chat.Chat{}, false, badger.ErrConflict
}

// writeChat stores the record and syncs the membership index against the
// previous membership set (nil for a fresh chat).
func writeChat(txn *badger.Txn, c chat.Chat, prevMembers []string) error {
	if err := setJSON(txn, chatKey(c.ID), c); err != nil {
		return err
	}
	removed, added := lo.Difference(prevMembers, c.Members)
	for _, userID := range removed {
		if err := txn.Delete(memberKey(userID, c.ID)); err != nil {
			return err
		}
	}
	for _, userID := range added {
		if err := txn.Set(memberKey(userID, c.ID), []byte(c.ID)); err != nil {
			return err
		}
	}
	return nil
}
