package model

import (
	"errors"
	"strings"
	"time"

	"github.com/matt0x6f/ircsession/internal/constants"
)

var (
	ErrDuplicateChannel = errors.New("channel already exists")
	ErrNoSuchChannel    = errors.New("no such channel")
	ErrDuplicateServer  = errors.New("server already exists")
	ErrNoSuchServer     = errors.New("no such server")
)

// Status is the lifecycle state of a server connection
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

// Mode is a user's privilege level within one channel
type Mode int

const (
	ModeNone Mode = iota
	ModeVoice
	ModeOperator
)

func (m Mode) String() string {
	switch m {
	case ModeOperator:
		return "operator"
	case ModeVoice:
		return "voice"
	default:
		return "none"
	}
}

// Prefix returns the sigil shown in front of a nick for this mode
func (m Mode) Prefix() string {
	switch m {
	case ModeOperator:
		return "@"
	case ModeVoice:
		return "+"
	default:
		return ""
	}
}

// ParseMode strips a leading privilege sigil from a NAMES entry.
// Only @ and + carry a mode here; the other prefixes servers send (% & ~)
// are stripped and map to ModeNone.
func ParseMode(entry string) (string, Mode) {
	mode := ModeNone
	for len(entry) > 0 {
		switch entry[0] {
		case '@':
			if mode < ModeOperator {
				mode = ModeOperator
			}
		case '+':
			if mode < ModeVoice {
				mode = ModeVoice
			}
		case '%', '&', '~':
		default:
			return entry, mode
		}
		entry = entry[1:]
	}
	return entry, mode
}

// MessageType distinguishes system notices from user-authored lines
type MessageType string

const (
	MessageSystem MessageType = "system"
	MessageUser   MessageType = "user"
)

// Message is an immutable entry in a channel or status buffer.
// Seq increases across the whole State, so two messages in different
// buffers can still be ordered.
type Message struct {
	Seq    uint64      `json:"seq"`
	Type   MessageType `json:"type"`
	Author string      `json:"author,omitempty"`
	Text   string      `json:"text"`
	Time   time.Time   `json:"time"`
}

// User is a per-channel membership record
type User struct {
	Nick string `json:"nick"`
	Mode Mode   `json:"mode"`
}

// DirectoryEntry is one row of a server's channel listing
type DirectoryEntry struct {
	Name  string `json:"name"`
	Users int    `json:"users"`
	Topic string `json:"topic"`
}

const pmPrefix = "pm-"

// PMChannelID returns the synthesized channel id for a private conversation with nick
func PMChannelID(nick string) string {
	return pmPrefix + nick
}

// PMTopic is the topic given to a freshly created private conversation
func PMTopic(nick string) string {
	return "Private conversation with " + nick
}

// IsGroupChannel reports whether id names a protocol channel rather than a PM
func IsGroupChannel(id string) bool {
	return id != "" && strings.ContainsRune(constants.ChannelPrefixes, rune(id[0]))
}
