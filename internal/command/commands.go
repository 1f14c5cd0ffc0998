package command

import (
	"github.com/matt0x6f/ircsession/internal/constants"
	"github.com/matt0x6f/ircsession/internal/model"
	"github.com/matt0x6f/ircsession/internal/reconcile"
	"github.com/matt0x6f/ircsession/internal/session"
	"github.com/matt0x6f/ircsession/internal/tracker"
	"github.com/matt0x6f/ircsession/internal/validation"
)

var commands = map[string]command{
	"join":       {needsServer, cmdJoin},
	"part":       {needsGroupChannel, cmdPart},
	"leave":      {needsGroupChannel, cmdPart},
	"msg":        {needsServer, cmdMsg},
	"query":      {needsServer, cmdMsg},
	"disconnect": {needsServer, cmdDisconnect},
	"nick":       {needsServer, cmdNick},
	"list":       {needsServer, cmdList},
	"me":         {needsChannel, cmdMe},
	"topic":      {needsGroupChannel, cmdTopic},
	"whois":      {needsServer, cmdWhois},
	"kick":       {needsGroupChannel, cmdKick},
	"ban":        {needsGroupChannel, cmdBan},
	"unban":      {needsGroupChannel, cmdUnban},
	"quit":       {needsServer, cmdQuit},
	"raw":        {needsServer, cmdRaw},
	"quote":      {needsServer, cmdRaw},
	"connect":    {needsServer, cmdConnect},
}

func cmdJoin(d *Dispatcher, c *call) []reconcile.Effect {
	name := c.arg(0)
	if name == "" {
		return usage(c, "/join #channel")
	}
	if err := validation.ValidateChannelName(name); err != nil {
		name = "#" + name
		if err := validation.ValidateChannelName(name); err != nil {
			return []reconcile.Effect{c.echo("Invalid channel name: " + err.Error())}
		}
	}
	return c.send(func(s *session.Session) error { return s.Join(name) })
}

func cmdPart(d *Dispatcher, c *call) []reconcile.Effect {
	channel, reason := c.ch.ID, c.rest(0)
	return c.send(func(s *session.Session) error { return s.Part(channel, reason) })
}

// cmdMsg opens the private conversation the same way an incoming private
// message would and switches to it
func cmdMsg(d *Dispatcher, c *call) []reconcile.Effect {
	nick, text := c.arg(0), c.rest(1)
	if nick == "" || (text == "" && c.name == "msg") {
		return usage(c, "/"+c.name+" nickname message")
	}
	if model.IsGroupChannel(nick) {
		if text == "" {
			return usage(c, "/"+c.name+" nickname message")
		}
		return c.send(func(s *session.Session) error { return s.Say(nick, text) })
	}

	ch, effs := reconcile.EnsurePMChannel(c.st, c.srv, nick)
	if ch == nil {
		return effs
	}
	if tracker.SelectChannel(c.st, c.srv.ID, ch.ID) {
		c.ch = ch
		effs = append(effs, reconcile.Notify{Scope: reconcile.ScopeActive, ServerID: c.srv.ID, ChannelID: ch.ID})
	}
	if text == "" {
		return effs
	}
	if failed := c.send(func(s *session.Session) error { return s.Say(nick, text) }); failed != nil {
		return append(effs, failed...)
	}
	msg := c.st.AppendUser(ch, c.srv.Nickname, text)
	return append(effs, reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: c.srv.ID, ChannelID: ch.ID, Message: &msg})
}

func cmdDisconnect(d *Dispatcher, c *call) []reconcile.Effect {
	return disconnect(c, constants.DisconnectByUserMessage)
}

func cmdQuit(d *Dispatcher, c *call) []reconcile.Effect {
	return disconnect(c, orDefault(c.rest(0), d.quitMessage))
}

// cmdNick asks the server for a new nickname. While disconnected the
// change is applied locally and used on the next connect.
func cmdNick(d *Dispatcher, c *call) []reconcile.Effect {
	nick := c.arg(0)
	if nick == "" {
		return usage(c, "/nick newnickname")
	}
	if err := validation.ValidateNickname(nick); err != nil {
		return []reconcile.Effect{c.echo("Invalid nickname: " + err.Error())}
	}
	if c.sess == nil || !c.sess.Connected() || c.srv.Status == model.StatusDisconnected {
		c.srv.Nickname = nick
		if c.sess != nil {
			c.sess.SetNick(nick)
		}
		return []reconcile.Effect{
			c.echo("Nickname set to " + nick),
			reconcile.Notify{Scope: reconcile.ScopeServers, ServerID: c.srv.ID},
			reconcile.Save{},
		}
	}
	return c.send(func(s *session.Session) error { return s.ChangeNick(nick) })
}

func cmdList(d *Dispatcher, c *call) []reconcile.Effect {
	if failed := c.send(func(s *session.Session) error { return s.RequestDirectory() }); failed != nil {
		return failed
	}
	effs := []reconcile.Effect{c.echo("Requesting channel list...")}
	return append(effs, reconcile.RequestDirectory(c.srv)...)
}

func cmdMe(d *Dispatcher, c *call) []reconcile.Effect {
	text := c.rest(0)
	if text == "" {
		return usage(c, "/me action")
	}
	to := target(c.ch)
	if failed := c.send(func(s *session.Session) error { return s.Action(to, text) }); failed != nil {
		return failed
	}
	return []reconcile.Effect{c.echo("* " + c.srv.Nickname + " " + text)}
}

func cmdTopic(d *Dispatcher, c *call) []reconcile.Effect {
	text := c.rest(0)
	if text == "" {
		return []reconcile.Effect{c.echo("Current topic: " + orDefault(c.ch.Topic, "No topic set"))}
	}
	channel := c.ch.ID
	return c.send(func(s *session.Session) error { return s.SetTopic(channel, text) })
}

func cmdWhois(d *Dispatcher, c *call) []reconcile.Effect {
	nick := c.arg(0)
	if nick == "" {
		return usage(c, "/whois nickname")
	}
	return c.send(func(s *session.Session) error { return s.Whois(nick) })
}

// cmdKick only asks the server; membership changes when the KICK comes back
func cmdKick(d *Dispatcher, c *call) []reconcile.Effect {
	nick := c.arg(0)
	if nick == "" {
		return usage(c, "/kick nickname [reason]")
	}
	channel, reason := c.ch.ID, orDefault(c.rest(1), constants.DefaultReason)
	return c.send(func(s *session.Session) error { return s.Kick(channel, nick, reason) })
}

func cmdBan(d *Dispatcher, c *call) []reconcile.Effect {
	nick := c.arg(0)
	if nick == "" {
		return usage(c, "/ban nickname")
	}
	channel := c.ch.ID
	return c.send(func(s *session.Session) error { return s.Ban(channel, nick) })
}

func cmdUnban(d *Dispatcher, c *call) []reconcile.Effect {
	nick := c.arg(0)
	if nick == "" {
		return usage(c, "/unban nickname")
	}
	channel := c.ch.ID
	return c.send(func(s *session.Session) error { return s.Unban(channel, nick) })
}

func cmdRaw(d *Dispatcher, c *call) []reconcile.Effect {
	line := c.rest(0)
	if line == "" {
		return usage(c, "/raw IRC_COMMAND")
	}
	return c.send(func(s *session.Session) error { return s.Raw(line) })
}

// cmdConnect starts a new connection generation for a disconnected server
func cmdConnect(d *Dispatcher, c *call) []reconcile.Effect {
	next, ok := session.Next(c.srv.Status, session.SignalConnectRequest)
	if !ok {
		return []reconcile.Effect{c.echo("Already connected or connecting to server")}
	}
	if c.sess == nil {
		return []reconcile.Effect{c.echo("Error: " + session.ErrNotConnected.Error())}
	}
	c.srv.Status = next
	msg := c.st.Broadcast(c.srv, "Reconnecting to server...")
	effs := []reconcile.Effect{
		reconcile.Notify{Scope: reconcile.ScopeServers, ServerID: c.srv.ID},
		reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: c.srv.ID, Message: &msg},
	}

	c.sess.SetNick(c.srv.Nickname)
	err := c.sess.Reconnect()
	c.srv.Generation = c.sess.Generation()
	if err != nil {
		c.srv.Status, _ = session.Next(c.srv.Status, session.SignalClose)
		effs = append(effs, c.echo("Error: "+err.Error()))
	}
	return effs
}
