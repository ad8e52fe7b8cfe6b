package store

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"converse/internal/model/chat"
)

func newChatStore(t *testing.T) *ChatStore {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewChatStore(db, slog.Default())
}

func buildDirect(a, b string) func() chat.Chat {
	return func() chat.Chat {
		now := time.Now().UTC()
		return chat.Chat{
			ID:        uuid.NewString(),
			IsGroup:   false,
			Members:   chat.MemberSet(a, b),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
}

func Test_EnsureDirect_Creates_Then_Finds(t *testing.T) {
	req := require.New(t)
	chats := newChatStore(t)

	first, created, err := chats.EnsureDirect("a", "b", buildDirect("a", "b"))
	req.NoError(err)
	req.True(created)

	second, created, err := chats.EnsureDirect("a", "b", buildDirect("a", "b"))
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, second.ID)
}

func Test_EnsureDirect_Pair_Is_Unordered(t *testing.T) {
	req := require.New(t)
	chats := newChatStore(t)

	first, created, err := chats.EnsureDirect("a", "b", buildDirect("a", "b"))
	req.NoError(err)
	req.True(created)

	// Swapped argument order resolves to the same chat.
	second, created, err := chats.EnsureDirect("b", "a", buildDirect("b", "a"))
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, second.ID)
}

func Test_Update_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	chats := newChatStore(t)

	err := chats.Update(chat.Chat{ID: "missing"})
	req.ErrorIs(err, ErrNotFound)
}

func Test_Update_Syncs_Membership_Index(t *testing.T) {
	req := require.New(t)
	chats := newChatStore(t)

	now := time.Now().UTC()
	c := chat.Chat{
		ID:        uuid.NewString(),
		Name:      "friends",
		IsGroup:   true,
		Members:   chat.MemberSet("a", "b", "c"),
		AdminID:   "a",
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.NoError(chats.Create(c))

	forB, err := chats.ListByMember("b")
	req.NoError(err)
	req.Len(forB, 1)

	c.RemoveMember("b")
	c.AddMember("d")
	req.NoError(chats.Update(c))

	forB, err = chats.ListByMember("b")
	req.NoError(err)
	req.Empty(forB)

	forD, err := chats.ListByMember("d")
	req.NoError(err)
	req.Len(forD, 1)
	req.Equal(c.ID, forD[0].ID)
}

func Test_ListByMember_Multiple_Chats(t *testing.T) {
	req := require.New(t)
	chats := newChatStore(t)

	direct, created, err := chats.EnsureDirect("a", "b", buildDirect("a", "b"))
	req.NoError(err)
	req.True(created)

	now := time.Now().UTC()
	group := chat.Chat{
		ID:        uuid.NewString(),
		Name:      "crew",
		IsGroup:   true,
		Members:   chat.MemberSet("a", "c", "d"),
		AdminID:   "a",
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.NoError(chats.Create(group))

	forA, err := chats.ListByMember("a")
	req.NoError(err)
	req.Len(forA, 2)

	forB, err := chats.ListByMember("b")
	req.NoError(err)
	req.Len(forB, 1)
	req.Equal(direct.ID, forB[0].ID)
}

func Test_EnsureDirect_Concurrent_Single_Winner(t *testing.T) {
	req := require.New(t)
	db, err := Open(t.TempDir())
	req.NoError(err)
	t.Cleanup(func() { db.Close() })
	chats := NewChatStore(db, slog.Default())

	const callers = 8
	ids := make(chan string, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			c, _, err := chats.EnsureDirect("a", "b", buildDirect("a", "b"))
			if err != nil {
				errs <- err
				return
			}
			ids <- c.ID
		}()
	}

	unique := make(map[string]struct{})
	for i := 0; i < callers; i++ {
		select {
		case err := <-errs:
			// A caller may exhaust its retries under heavy contention,
			// but it must fail loudly rather than create a duplicate.
			req.ErrorIs(err, badger.ErrConflict)
		case id := <-ids:
			unique[id] = struct{}{}
		}
	}
	req.Len(unique, 1)
}
