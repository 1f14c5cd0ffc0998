package model

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

type directoryState int

const (
	directoryIdle directoryState = iota
	directoryCollecting
	directoryExpired
)

// Server is one configured connection and everything learned through it
type Server struct {
	ID       string
	Name     string
	Host     string
	Port     int
	Nickname string
	Password string
	TLS      bool
	Status   Status

	// LastActiveChannel is restored when the server is selected again
	LastActiveChannel string

	// Generation identifies the live connection; events from older
	// connections are ignored
	Generation uint64

	// Log is the status buffer for server-scoped messages
	Log []Message

	// Directory caches the channel listing; DirectoryGen increments each
	// time a new listing starts
	Directory    []DirectoryEntry
	DirectoryGen uint64
	dirState     directoryState

	channels map[string]*Channel
	order    []string
}

// NewServer creates a server in the connecting state
func NewServer(id, name, host string, port int, nickname string) *Server {
	return &Server{
		ID:       id,
		Name:     name,
		Host:     host,
		Port:     port,
		Nickname: nickname,
		Status:   StatusConnecting,
		channels: make(map[string]*Channel),
	}
}

// Address returns host:port
func (s *Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsSelf reports whether nick is this connection's own nickname
func (s *Server) IsSelf(nick string) bool {
	return nick != "" && strings.EqualFold(nick, s.Nickname)
}

// Channel looks up a channel by id
func (s *Server) Channel(id string) *Channel {
	return s.channels[id]
}

// Channels returns the channels in insertion order
func (s *Server) Channels() []*Channel {
	out := make([]*Channel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.channels[id])
	}
	return out
}

// ChannelCount returns the number of open channels
func (s *Server) ChannelCount() int {
	return len(s.order)
}

// FirstChannel returns the earliest opened channel still present, or nil
func (s *Server) FirstChannel() *Channel {
	if len(s.order) == 0 {
		return nil
	}
	return s.channels[s.order[0]]
}

// AddChannel registers ch; ids must be unique within the server
func (s *Server) AddChannel(ch *Channel) error {
	if _, ok := s.channels[ch.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, ch.ID)
	}
	s.channels[ch.ID] = ch
	s.order = append(s.order, ch.ID)
	return nil
}

// RemoveChannel deletes a channel and reports whether it existed
func (s *Server) RemoveChannel(id string) bool {
	if _, ok := s.channels[id]; !ok {
		return false
	}
	delete(s.channels, id)
	for i, cid := range s.order {
		if cid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.LastActiveChannel == id {
		s.LastActiveChannel = ""
	}
	return true
}

// AddUser adds nick to a channel
func (s *Server) AddUser(channelID, nick string, mode Mode) error {
	ch := s.channels[channelID]
	if ch == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchChannel, channelID)
	}
	ch.SetUser(nick, mode)
	return nil
}

// RemoveUser removes nick from a channel
func (s *Server) RemoveUser(channelID, nick string) error {
	ch := s.channels[channelID]
	if ch == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchChannel, channelID)
	}
	ch.RemoveUser(nick)
	return nil
}

// BeginDirectory clears the cache for a new listing request and returns its generation
func (s *Server) BeginDirectory() uint64 {
	s.Directory = nil
	s.DirectoryGen++
	s.dirState = directoryCollecting
	return s.DirectoryGen
}

// AddDirectoryRow accumulates one listing row. A row arriving with no
// listing in progress starts a new one; started reports that case.
func (s *Server) AddDirectoryRow(e DirectoryEntry) (started bool) {
	if s.dirState == directoryIdle {
		s.BeginDirectory()
		started = true
	}
	s.Directory = append(s.Directory, e)
	return started
}

// EndDirectory closes the current listing. It reports whether the
// consumer still needs a refresh, which is false once the fallback fired.
func (s *Server) EndDirectory() bool {
	refresh := s.dirState == directoryCollecting
	s.dirState = directoryIdle
	return refresh
}

// ExpireDirectory is the fallback for a listing whose end marker never
// arrived. It reports true at most once per generation.
func (s *Server) ExpireDirectory(gen uint64) bool {
	if gen != s.DirectoryGen || s.dirState != directoryCollecting {
		return false
	}
	s.dirState = directoryExpired
	return true
}

// ReplaceDirectory installs a complete listing received in one piece
func (s *Server) ReplaceDirectory(entries []DirectoryEntry) {
	s.Directory = append([]DirectoryEntry(nil), entries...)
	s.DirectoryGen++
	s.dirState = directoryIdle
}

// DirectoryCollecting reports whether a listing is still being accumulated
func (s *Server) DirectoryCollecting() bool {
	return s.dirState == directoryCollecting
}

// DirectorySorted returns the cached listing ordered by user count, largest first
func (s *Server) DirectorySorted() []DirectoryEntry {
	out := append([]DirectoryEntry(nil), s.Directory...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Users > out[j].Users
	})
	return out
}

// SearchDirectory filters the sorted listing by a case-insensitive match
// on channel name or topic. An empty term returns everything.
func (s *Server) SearchDirectory(term string) []DirectoryEntry {
	term = strings.ToLower(strings.TrimSpace(term))
	all := s.DirectorySorted()
	if term == "" {
		return all
	}
	var out []DirectoryEntry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Name), term) || strings.Contains(strings.ToLower(e.Topic), term) {
			out = append(out, e)
		}
	}
	return out
}
