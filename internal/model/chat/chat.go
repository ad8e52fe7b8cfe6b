package chat

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"converse/internal/model/user"
)

// Chat is the stored conversation record. Members is kept as a sorted,
// duplicate-free slice so that membership behaves as a set regardless of
// insertion order.
type Chat struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IsGroup       bool      `json:"isGroup"`
	Members       []string  `json:"members"`
	AdminID       string    `json:"adminId,omitempty"`
	LatestMessage *Message  `json:"latestMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MemberSet normalizes a list of user ids into set form.
func MemberSet(ids ...string) []string {
	set := lo.Uniq(lo.Filter(ids, func(id string, _ int) bool { return id != "" }))
	sort.Strings(set)
	return set
}

// HasMember reports whether the user belongs to the chat.
func (c *Chat) HasMember(userID string) bool {
	return lo.Contains(c.Members, userID)
}

// AddMember inserts the user into the membership set. Returns false when the
// user was already a member.
func (c *Chat) AddMember(userID string) bool {
	if c.HasMember(userID) {
		return false
	}
	c.Members = MemberSet(append(c.Members, userID)...)
	return true
}

// RemoveMember drops the user from the membership set. Returns false when
// the user was not a member.
func (c *Chat) RemoveMember(userID string) bool {
	if !c.HasMember(userID) {
		return false
	}
	c.Members = lo.Filter(c.Members, func(id string, _ int) bool { return id != userID })
	return true
}

// View is the populated projection of a chat returned by the API: member
// references resolved to user summaries, admin and latest message expanded.
type View struct {
	ID            string         `json:"_id"`
	Name          string         `json:"chatName"`
	IsGroup       bool           `json:"isGroupChat"`
	Users         []user.Summary `json:"users"`
	Admin         *user.Summary  `json:"groupAdmin,omitempty"`
	LatestMessage *MessageView   `json:"latestMessage,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}
