// Package sessiontest provides an in-memory session.Conn for tests.
package sessiontest

import (
	"strings"
	"sync"

	"github.com/matt0x6f/ircsession/internal/irc"
	"github.com/matt0x6f/ircsession/internal/session"
)

// Call records one method invocation on a Conn
type Call struct {
	Method string
	Args   []string
}

func (c Call) String() string {
	return c.Method + "(" + strings.Join(c.Args, ", ") + ")"
}

// Conn records every call and can push events into its sink
type Conn struct {
	ServerID   string
	Generation uint64
	Config     irc.Config
	Sink       irc.Sink
	ConnectErr error

	mu    sync.Mutex
	calls []Call
}

func (c *Conn) record(method string, args ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of the recorded calls
func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Last returns the most recent call, or a zero Call
func (c *Conn) Last() Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return Call{}
	}
	return c.calls[len(c.calls)-1]
}

// Emit delivers ev to the sink stamped with this connection's identity
func (c *Conn) Emit(ev irc.Event) {
	ev.ServerID = c.ServerID
	ev.Generation = c.Generation
	c.Sink(ev)
}

func (c *Conn) Connect() error {
	c.record("Connect")
	return c.ConnectErr
}

func (c *Conn) Join(channel string) error {
	c.record("Join", channel)
	return nil
}

func (c *Conn) Part(channel, reason string) error {
	c.record("Part", channel, reason)
	return nil
}

func (c *Conn) Say(target, text string) error {
	c.record("Say", target, text)
	return nil
}

func (c *Conn) Action(target, text string) error {
	c.record("Action", target, text)
	return nil
}

func (c *Conn) SetTopic(channel, text string) error {
	c.record("SetTopic", channel, text)
	return nil
}

func (c *Conn) Whois(nick string) error {
	c.record("Whois", nick)
	return nil
}

func (c *Conn) ChangeNick(nick string) error {
	c.record("ChangeNick", nick)
	return nil
}

func (c *Conn) Kick(channel, nick, reason string) error {
	c.record("Kick", channel, nick, reason)
	return nil
}

func (c *Conn) Mode(target string, args ...string) error {
	c.record("Mode", append([]string{target}, args...)...)
	return nil
}

func (c *Conn) Raw(line string) error {
	c.record("Raw", line)
	return nil
}

func (c *Conn) Quit(message string) {
	c.record("Quit", message)
}

// Dialer hands out Conns and remembers them in dial order
type Dialer struct {
	mu    sync.Mutex
	conns []*Conn
}

// Dial satisfies session.Dialer
func (d *Dialer) Dial(serverID string, generation uint64, cfg irc.Config, sink irc.Sink) session.Conn {
	c := &Conn{ServerID: serverID, Generation: generation, Config: cfg, Sink: sink}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c
}

// Conns returns every Conn dialled so far
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Latest returns the most recently dialled Conn for serverID, or nil
func (d *Dialer) Latest(serverID string) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.conns) - 1; i >= 0; i-- {
		if d.conns[i].ServerID == serverID {
			return d.conns[i]
		}
	}
	return nil
}
