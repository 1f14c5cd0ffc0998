package model

import (
	"sort"
	"strings"
)

// Channel is either a protocol channel or a synthesized private conversation.
// For a PM channel Name holds the remote nick.
type Channel struct {
	ID       string
	Name     string
	Topic    string
	Messages []Message

	users map[string]*User
}

// NewChannel creates an empty channel
func NewChannel(id, name string) *Channel {
	return &Channel{
		ID:    id,
		Name:  name,
		users: make(map[string]*User),
	}
}

// IsGroup reports whether this is a protocol channel
func (c *Channel) IsGroup() bool {
	return IsGroupChannel(c.ID)
}

// User returns the membership record for nick, or nil
func (c *Channel) User(nick string) *User {
	return c.users[nick]
}

// HasUser reports whether nick is a member
func (c *Channel) HasUser(nick string) bool {
	_, ok := c.users[nick]
	return ok
}

// UserCount returns the number of members
func (c *Channel) UserCount() int {
	return len(c.users)
}

// SetUser inserts or overwrites a membership record
func (c *Channel) SetUser(nick string, mode Mode) {
	if nick == "" {
		return
	}
	c.users[nick] = &User{Nick: nick, Mode: mode}
}

// RemoveUser deletes nick and reports whether it was present
func (c *Channel) RemoveUser(nick string) bool {
	if _, ok := c.users[nick]; !ok {
		return false
	}
	delete(c.users, nick)
	return true
}

// RenameUser moves the record for oldNick to newNick keeping its mode
func (c *Channel) RenameUser(oldNick, newNick string) bool {
	u, ok := c.users[oldNick]
	if !ok {
		return false
	}
	delete(c.users, oldNick)
	c.users[newNick] = &User{Nick: newNick, Mode: u.Mode}
	return true
}

// ReplaceUsers discards the member set and rebuilds it from prefixed NAMES entries
func (c *Channel) ReplaceUsers(entries []string) {
	c.users = make(map[string]*User, len(entries))
	for _, entry := range entries {
		nick, mode := ParseMode(entry)
		c.SetUser(nick, mode)
	}
}

// SortedUsers returns operators first, then voiced users, then the rest,
// alphabetically within each group
func (c *Channel) SortedUsers() []User {
	out := make([]User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode > out[j].Mode
		}
		return strings.ToLower(out[i].Nick) < strings.ToLower(out[j].Nick)
	})
	return out
}
