package session

import (
	"errors"
	"fmt"

	"github.com/matt0x6f/ircsession/internal/irc"
	"github.com/matt0x6f/ircsession/internal/logger"
)

var ErrNotConnected = errors.New("not connected to server")

// Conn is one live protocol connection. All methods are fire-and-forget:
// results come back through the connection's event sink.
type Conn interface {
	Connect() error
	Join(channel string) error
	Part(channel, reason string) error
	Say(target, text string) error
	Action(target, text string) error
	SetTopic(channel, text string) error
	Whois(nick string) error
	ChangeNick(nick string) error
	Kick(channel, nick, reason string) error
	Mode(target string, args ...string) error
	Raw(line string) error
	Quit(message string)
}

// Dialer builds a connection for one generation of a server
type Dialer func(serverID string, generation uint64, cfg irc.Config, sink irc.Sink) Conn

// IRCDialer creates ircevent-backed connections
func IRCDialer(serverID string, generation uint64, cfg irc.Config, sink irc.Sink) Conn {
	return irc.NewClient(serverID, generation, cfg, sink)
}

// Session owns the connection of one server. It is used from the single
// state consumer only.
type Session struct {
	serverID   string
	cfg        irc.Config
	dial       Dialer
	sink       irc.Sink
	conn       Conn
	generation uint64
}

// New creates an idle session
func New(serverID string, cfg irc.Config, dial Dialer, sink irc.Sink) *Session {
	return &Session{
		serverID: serverID,
		cfg:      cfg,
		dial:     dial,
		sink:     sink,
	}
}

// Generation identifies the current connection. Events tagged with any
// other generation are stale.
func (s *Session) Generation() uint64 {
	return s.generation
}

// Connected reports whether a connection has been started and not torn down
func (s *Session) Connected() bool {
	return s.conn != nil
}

// SetNick updates the nickname used for future connections
func (s *Session) SetNick(nick string) {
	s.cfg.Nick = nick
}

// Connect starts a new connection generation. Any previous connection is
// abandoned.
func (s *Session) Connect() error {
	if s.conn != nil {
		s.conn.Quit(s.cfg.QuitMessage)
	}
	s.generation++
	s.conn = s.dial(s.serverID, s.generation, s.cfg, s.sink)
	logger.Log.Debug().Str("server", s.serverID).Uint64("generation", s.generation).Msg("Starting connection")
	if err := s.conn.Connect(); err != nil {
		s.conn = nil
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Reconnect tears down the current connection, if any, and starts a new one
func (s *Session) Reconnect() error {
	return s.Connect()
}

// Disconnect quits with reason and bumps the generation so that late
// signals from the old connection, including reconnect attempts, are ignored
func (s *Session) Disconnect(reason string) {
	if s.conn != nil {
		s.conn.Quit(reason)
		s.conn = nil
	}
	s.generation++
	logger.Log.Debug().Str("server", s.serverID).Str("reason", reason).Msg("Disconnected")
}

func (s *Session) live() (Conn, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

func (s *Session) Join(channel string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Join(channel)
}

func (s *Session) Part(channel, reason string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Part(channel, reason)
}

func (s *Session) Say(target, text string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Say(target, text)
}

func (s *Session) Action(target, text string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Action(target, text)
}

func (s *Session) SetTopic(channel, text string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.SetTopic(channel, text)
}

func (s *Session) Whois(nick string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Whois(nick)
}

func (s *Session) ChangeNick(nick string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.ChangeNick(nick)
}

func (s *Session) Kick(channel, nick, reason string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Kick(channel, nick, reason)
}

func (s *Session) Ban(channel, nick string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Mode(channel, "+b", nick)
}

func (s *Session) Unban(channel, nick string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Mode(channel, "-b", nick)
}

func (s *Session) Raw(line string) error {
	c, err := s.live()
	if err != nil {
		return err
	}
	return c.Raw(line)
}

// RequestNames asks for the membership of every visible channel
func (s *Session) RequestNames() error {
	return s.Raw("NAMES *")
}

// RequestDirectory asks for the server's channel listing
func (s *Session) RequestDirectory() error {
	return s.Raw("LIST")
}

// Quit is Disconnect under the protocol's name
func (s *Session) Quit(message string) {
	s.Disconnect(message)
}
