package store

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"converse/internal/model/user"
)

func newTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db, slog.Default())
}

func testUser(name, email string) user.User {
	return user.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
}

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	users := newTestDB(t)

	u := testUser("alice", "alice@example.com")
	req.NoError(users.Create(u))

	byID, err := users.GetByID(u.ID)
	req.NoError(err)
	req.Equal(u.Email, byID.Email)

	byEmail, err := users.GetByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(u.ID, byEmail.ID)
}

func Test_Create_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	users := newTestDB(t)

	req.NoError(users.Create(testUser("alice", "alice@example.com")))
	err := users.Create(testUser("imposter", "alice@example.com"))
	req.ErrorIs(err, ErrEmailTaken)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	users := newTestDB(t)

	_, err := users.GetByID("missing")
	req.ErrorIs(err, ErrNotFound)

	_, err = users.GetByEmail("nobody@example.com")
	req.ErrorIs(err, ErrNotFound)
}

func Test_Search_Excludes_Caller_And_Matches_Substring(t *testing.T) {
	req := require.New(t)
	users := newTestDB(t)

	alice := testUser("Alice", "alice@example.com")
	bob := testUser("Bob", "bob@example.com")
	carol := testUser("Carol", "carol@other.org")
	req.NoError(users.Create(alice))
	req.NoError(users.Create(bob))
	req.NoError(users.Create(carol))

	found, err := users.Search("ali", bob.ID)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal(alice.ID, found[0].ID)

	// Case-insensitive email match.
	found, err = users.Search("OTHER.ORG", alice.ID)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal(carol.ID, found[0].ID)

	// Empty query returns everyone but the caller.
	found, err = users.Search("", alice.ID)
	req.NoError(err)
	req.Len(found, 2)

	// The caller never appears in their own results.
	found, err = users.Search("alice", alice.ID)
	req.NoError(err)
	req.Empty(found)
}
