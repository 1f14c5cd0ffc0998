package irc

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/ircsession/internal/logger"
)

// Config describes one connection attempt
type Config struct {
	Host     string
	Port     int
	Nick     string
	User     string
	RealName string
	Password string
	TLS      bool
	// InsecureSkipVerify accepts self-signed server certificates
	InsecureSkipVerify bool
	// ReconnectFreq is the minimum delay between automatic reconnects.
	// Zero disables reconnection.
	ReconnectFreq time.Duration
	// ConnectTimeout bounds the dial and TLS handshake
	ConnectTimeout time.Duration
	QuitMessage    string
}

// translated commands; anything else is ignored
var commands = []string{
	"PRIVMSG", "NOTICE", "JOIN", "PART", "KICK", "QUIT", "NICK", "TOPIC",
	"331", "332", "353", "366", "321", "322", "323", "900",
	"311", "312", "319",
	"401", "403", "404", "442", "481", "482", "904",
}

// Client adapts an ircevent connection to the Event stream of one server.
// Every event it emits carries the server id and connection generation
// it was created with.
type Client struct {
	conn       *ircevent.Connection
	serverID   string
	generation uint64
	sink       Sink
	tr         *translator

	mu       sync.Mutex
	quitting bool
}

// NewClient creates a client; nothing is dialled until Connect
func NewClient(serverID string, generation uint64, cfg Config, sink Sink) *Client {
	user := cfg.User
	if user == "" {
		user = cfg.Nick
	}
	c := &Client{
		serverID:   serverID,
		generation: generation,
		sink:       sink,
		tr:         newTranslator(),
	}
	c.conn = &ircevent.Connection{
		Server:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Nick:          cfg.Nick,
		User:          user,
		RealName:      cfg.RealName,
		UseTLS:        cfg.TLS,
		Password:      cfg.Password,
		ReconnectFreq: cfg.ReconnectFreq,
		Timeout:       cfg.ConnectTimeout,
		QuitMessage:   cfg.QuitMessage,
	}
	if cfg.TLS {
		c.conn.TLSConfig = &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}
	c.setupHandlers()
	return c
}

func (c *Client) emit(ev Event) {
	ev.ServerID = c.serverID
	ev.Generation = c.generation
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.sink(ev)
}

func (c *Client) setupHandlers() {
	c.conn.AddConnectCallback(func(e ircmsg.Message) {
		logger.Log.Info().Str("server", c.serverID).Str("addr", c.conn.Server).Msg("Registered with server")
		c.emit(Event{Kind: KindRegistered, Nick: c.conn.CurrentNick()})
	})

	c.conn.AddDisconnectCallback(func(e ircmsg.Message) {
		c.mu.Lock()
		quitting := c.quitting
		c.mu.Unlock()

		if !quitting && c.conn.ReconnectFreq > 0 {
			logger.Log.Warn().Str("server", c.serverID).Msg("Connection lost, reconnecting")
			c.emit(Event{Kind: KindReconnecting})
			return
		}
		if !quitting {
			// ircevent's Loop redials unless Quit was called
			c.mu.Lock()
			c.quitting = true
			c.mu.Unlock()
			c.conn.Quit()
		}
		logger.Log.Info().Str("server", c.serverID).Msg("Connection closed")
		c.emit(Event{Kind: KindClose})
	})

	for _, cmd := range commands {
		c.conn.AddCallback(cmd, c.handle)
	}

	// CTCP requests other than ACTION are answered here and never reach the state
	c.conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		cmd, args, ok := ctcp(e.Params[1])
		if !ok {
			return
		}
		switch cmd {
		case "VERSION":
			c.conn.Notice(e.Nick(), "\x01VERSION ircsession\x01")
		case "PING":
			c.conn.Notice(e.Nick(), fmt.Sprintf("\x01PING %s\x01", args))
		case "TIME":
			c.conn.Notice(e.Nick(), fmt.Sprintf("\x01TIME %s\x01", time.Now().Format(time.RFC1123)))
		}
	})
}

func (c *Client) handle(e ircmsg.Message) {
	for _, ev := range c.tr.translate(e, c.conn.CurrentNick()) {
		c.emit(ev)
	}
}

// Connect dials and registers in the background; the outcome arrives as
// events (registered on success, error then close on failure)
func (c *Client) Connect() error {
	go func() {
		logger.Log.Info().Str("server", c.serverID).Str("addr", c.conn.Server).Bool("tls", c.conn.UseTLS).Msg("Connecting")
		if err := c.conn.Connect(); err != nil {
			logger.Log.Error().Err(err).Str("server", c.serverID).Msg("Failed to connect")
			c.emit(Event{Kind: KindError, Text: err.Error()})
			c.emit(Event{Kind: KindClose})
			return
		}
		c.conn.Loop()
	}()
	return nil
}

// Quit sends QUIT with message and stops automatic reconnection
func (c *Client) Quit(message string) {
	c.mu.Lock()
	c.quitting = true
	c.mu.Unlock()
	if message != "" {
		c.conn.QuitMessage = message
	}
	c.conn.Quit()
}

func (c *Client) Join(channel string) error {
	return c.conn.Join(channel)
}

func (c *Client) Part(channel, reason string) error {
	if reason == "" {
		return c.conn.Send("PART", channel)
	}
	return c.conn.Send("PART", channel, reason)
}

func (c *Client) Say(target, text string) error {
	return c.conn.Privmsg(target, text)
}

func (c *Client) Action(target, text string) error {
	return c.conn.Privmsg(target, "\x01ACTION "+text+"\x01")
}

func (c *Client) SetTopic(channel, text string) error {
	return c.conn.Send("TOPIC", channel, text)
}

func (c *Client) Whois(nick string) error {
	return c.conn.Send("WHOIS", nick)
}

func (c *Client) ChangeNick(nick string) error {
	return c.conn.Send("NICK", nick)
}

func (c *Client) Kick(channel, nick, reason string) error {
	return c.conn.Send("KICK", channel, nick, reason)
}

func (c *Client) Mode(target string, args ...string) error {
	return c.conn.Send("MODE", append([]string{target}, args...)...)
}

// Raw sends line to the server unmodified
func (c *Client) Raw(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return fmt.Errorf("empty raw command")
	}
	return c.conn.SendRaw(line)
}
