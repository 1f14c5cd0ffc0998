package irc

import (
	"time"

	"github.com/matt0x6f/ircsession/internal/model"
)

// Kind names an inbound protocol event
type Kind string

// Event kinds emitted by the IRC client
const (
	KindMessage        Kind = "message"
	KindJoin           Kind = "join"
	KindPart           Kind = "part"
	KindKick           Kind = "kick"
	KindQuit           Kind = "quit"
	KindNick           Kind = "nick"
	KindTopic          Kind = "topic"
	KindUserList       Kind = "userlist"
	KindNames          Kind = "names"
	KindChannelList    Kind = "channel-list"
	KindChannelListRow Kind = "channel-list-row"
	KindChannelListEnd Kind = "channel-list-end"
	KindAuthenticated  Kind = "authenticated"
	KindReconnecting   Kind = "reconnecting"
	KindConnected      Kind = "connected"
	KindRegistered     Kind = "registered"
	KindClose          Kind = "close"
	KindError          Kind = "error"
	KindNotice         Kind = "notice"
)

// Event is a single inbound occurrence on one connection. Which fields
// are meaningful depends on Kind:
//
//	message         Nick (sender), Target, Text, Action
//	join, part      Nick, Channel, Text (part reason)
//	kick            Nick (kicked), By, Channel, Text (reason)
//	quit            Nick, Text (reason)
//	nick            Nick (old), NewNick
//	topic           Channel, Text
//	userlist/names  Channel, Names
//	channel-list    Entries
//	channel-list-row Entries (one element)
//	error           Channel (optional), Text
//	notice          Nick (optional), Text
type Event struct {
	Kind       Kind
	ServerID   string
	Generation uint64
	Time       time.Time

	Nick    string
	NewNick string
	By      string
	Target  string
	Channel string
	Text    string
	Action  bool
	Names   []string
	Entries []model.DirectoryEntry
}

// Sink receives events from a connection. It is called from the
// connection's own goroutine and must not block for long.
type Sink func(Event)
