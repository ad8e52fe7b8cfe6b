package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"converse/internal/model/user"
)

// UserStore persists identity records. Emails are unique: the email index
// key is checked and written in the same transaction as the user record.
type UserStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserStore(db *badger.DB, log *slog.Logger) *UserStore {
	return &UserStore{db: db, log: log}
}

func (s *UserStore) Create(u user.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(emailKey(u.Email))
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, userKey(u.ID), u); err != nil {
			return err
		}
		return txn.Set(emailKey(u.Email), []byte(u.ID))
	})
}

func (s *UserStore) GetByID(id string) (user.User, error) {
	var u user.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &u)
	})
	return u, err
}

func (s *UserStore) GetByEmail(email string) (user.User, error) {
	var u user.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(raw []byte) error {
			id = string(raw)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, userKey(id), &u)
	})
	return u, err
}

// Search returns users whose name or email contains the query
// (case-insensitive), excluding excludeID. An empty query matches everyone.
func (s *UserStore) Search(query, excludeID string) ([]user.User, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	users := make([]user.User, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("user:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var u user.User
			if err := it.Item().Value(func(raw []byte) error {
				return json.Unmarshal(raw, &u)
			}); err != nil {
				return err
			}
			if u.ID == excludeID {
				continue
			}
			if q == "" ||
				strings.Contains(strings.ToLower(u.Name), q) ||
				strings.Contains(strings.ToLower(u.Email), q) {
				users = append(users, u)
			}
		}
		return nil
	})
	return users, err
}
