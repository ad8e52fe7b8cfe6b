package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")
	ErrNotMember  = errors.New("sender is not a chat member")
)

// Open opens the badger database backing all repositories. Badger's own
// logger is noisy at INFO, so it is capped at ERROR.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	return badger.Open(opts)
}

// Key layout. Messages embed a zero-padded nanosecond timestamp so that a
// lexicographic prefix scan returns them in creation order; the trailing
// uuid disambiguates two messages written in the same nanosecond.
//
//	user:{id}                     -> User (JSON)
//	useremail:{lower(email)}      -> user id
//	chat:{id}                     -> Chat (JSON)
//	chatmember:{userID}:{chatID}  -> chat id
//	direct:{idA}:{idB}            -> chat id (idA < idB)
//	msg:{chatID}:{%019d nanos}:{uuid} -> Message (JSON)

func userKey(id string) []byte {
	return []byte("user:" + id)
}

func emailKey(email string) []byte {
	return []byte("useremail:" + strings.ToLower(email))
}

func chatKey(id string) []byte {
	return []byte("chat:" + id)
}

func memberKey(userID, chatID string) []byte {
	return []byte("chatmember:" + userID + ":" + chatID)
}

func memberPrefix(userID string) []byte {
	return []byte("chatmember:" + userID + ":")
}

// directKey identifies the unique direct chat for an unordered user pair.
func directKey(a, b string) []byte {
	if a > b {
		a, b = b, a
	}
	return []byte("direct:" + a + ":" + b)
}

func msgKey(chatID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", chatID, at.UnixNano(), id))
}

func msgPrefix(chatID string) []byte {
	return []byte("msg:" + chatID + ":")
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return txn.Set(key, raw)
}

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(raw []byte) error {
		return json.Unmarshal(raw, v)
	})
}
