// Package command turns typed input into protocol actions and local state changes.
package command

import (
	"fmt"
	"strings"

	"github.com/matt0x6f/ircsession/internal/constants"
	"github.com/matt0x6f/ircsession/internal/logger"
	"github.com/matt0x6f/ircsession/internal/metrics"
	"github.com/matt0x6f/ircsession/internal/model"
	"github.com/matt0x6f/ircsession/internal/reconcile"
	"github.com/matt0x6f/ircsession/internal/session"
)

// Sessions resolves the session of a server, or nil
type Sessions func(serverID string) *session.Session

type requirement int

const (
	needsServer requirement = iota
	needsChannel
	needsGroupChannel
)

type command struct {
	needs requirement
	run   func(d *Dispatcher, c *call) []reconcile.Effect
}

// call is one parsed command line with its resolved context
type call struct {
	st   *model.State
	srv  *model.Server
	ch   *model.Channel
	sess *session.Session
	name string
	args []string
}

// arg returns positional argument i (0 is the first after the command name)
func (c *call) arg(i int) string {
	if i < len(c.args) {
		return c.args[i]
	}
	return ""
}

// rest rejoins every argument from i on as free text
func (c *call) rest(i int) string {
	if i >= len(c.args) {
		return ""
	}
	return strings.Join(c.args[i:], " ")
}

// echo writes a system line where the user is looking: the active channel,
// or the server status buffer when no channel is open
func (c *call) echo(text string) reconcile.Effect {
	if c.ch != nil {
		msg := c.st.AppendSystem(c.ch, text)
		return reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: c.srv.ID, ChannelID: c.ch.ID, Message: &msg}
	}
	msg := c.st.AppendStatus(c.srv, text)
	return reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: c.srv.ID, Message: &msg}
}

// send runs a protocol action and reports failure in the buffer
func (c *call) send(action func(s *session.Session) error) []reconcile.Effect {
	err := session.ErrNotConnected
	if c.sess != nil {
		err = action(c.sess)
	}
	if err != nil {
		logger.Log.Debug().Err(err).Str("server", c.srv.ID).Str("command", c.name).Msg("Command not sent")
		return []reconcile.Effect{c.echo("Error: " + err.Error())}
	}
	return nil
}

// target is where text typed into ch is addressed
func target(ch *model.Channel) string {
	if ch.IsGroup() {
		return ch.ID
	}
	return ch.Name
}

// Dispatcher parses input for the active server
type Dispatcher struct {
	sessions    Sessions
	quitMessage string
}

// New creates a dispatcher. quitMessage is used by /quit without an argument.
func New(sessions Sessions, quitMessage string) *Dispatcher {
	if quitMessage == "" {
		quitMessage = constants.DefaultQuitMessage
	}
	return &Dispatcher{sessions: sessions, quitMessage: quitMessage}
}

// Dispatch handles one line of user input against the active context.
// Lines starting with / are commands; anything else is said in the
// active channel.
func (d *Dispatcher) Dispatch(st *model.State, input string) []reconcile.Effect {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	srv := st.ActiveServer()
	if srv == nil {
		logger.Log.Warn().Str("input", input).Msg("Ignoring input with no active server")
		return nil
	}
	c := &call{st: st, srv: srv, ch: st.ActiveChannel(), sess: d.sessions(srv.ID)}

	if !strings.HasPrefix(input, "/") {
		return say(c, input)
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return nil
	}
	c.name = strings.ToLower(fields[0])
	c.args = fields[1:]

	effs := []reconcile.Effect{c.echo("Executing command: /" + c.name)}
	cmd, ok := commands[c.name]
	if !ok {
		metrics.RecordCommand("unknown")
		return append(effs, c.echo("Unknown command: /"+c.name))
	}
	metrics.RecordCommand(c.name)

	switch cmd.needs {
	case needsChannel:
		if c.ch == nil {
			return append(effs, c.echo("You are not in a channel"))
		}
	case needsGroupChannel:
		if c.ch == nil || !c.ch.IsGroup() {
			return append(effs, c.echo("You are not in a channel"))
		}
	}
	return append(effs, cmd.run(d, c)...)
}

func say(c *call, text string) []reconcile.Effect {
	if c.ch == nil {
		return []reconcile.Effect{c.echo("You are not in a channel")}
	}
	if effs := c.send(func(s *session.Session) error { return s.Say(target(c.ch), text) }); effs != nil {
		return effs
	}
	msg := c.st.AppendUser(c.ch, c.srv.Nickname, text)
	return []reconcile.Effect{reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: c.srv.ID, ChannelID: c.ch.ID, Message: &msg}}
}

// usage reports a malformed command
func usage(c *call, text string) []reconcile.Effect {
	return []reconcile.Effect{c.echo("Usage: " + text)}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// disconnect quits the connection and marks the server disconnected
// without waiting for the close signal, which will arrive stale
func disconnect(c *call, reason string) []reconcile.Effect {
	if c.sess != nil {
		c.sess.Disconnect(reason)
		c.srv.Generation = c.sess.Generation()
	}
	next, ok := session.Next(c.srv.Status, session.SignalClose)
	if !ok {
		return []reconcile.Effect{c.echo("Not connected to server")}
	}
	c.srv.Status = next
	msg := c.st.Broadcast(c.srv, fmt.Sprintf("Disconnected from server (%s)", reason))
	return []reconcile.Effect{
		reconcile.Notify{Scope: reconcile.ScopeServers, ServerID: c.srv.ID},
		reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: c.srv.ID, Message: &msg},
	}
}
