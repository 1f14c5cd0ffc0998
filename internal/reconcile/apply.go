// Package reconcile applies inbound protocol events to the client state.
//
// Every handler is a deterministic function of the current state and one
// event. It mutates the state in place and returns the effects the caller
// must carry out. Events that reference a server, channel or user that is
// not present are dropped without effects.
package reconcile

import (
	"fmt"

	"github.com/matt0x6f/ircsession/internal/constants"
	"github.com/matt0x6f/ircsession/internal/irc"
	"github.com/matt0x6f/ircsession/internal/logger"
	"github.com/matt0x6f/ircsession/internal/model"
	"github.com/matt0x6f/ircsession/internal/session"
	"github.com/matt0x6f/ircsession/internal/tracker"
)

type handler func(st *model.State, srv *model.Server, ev irc.Event) []Effect

var handlers = map[irc.Kind]handler{
	irc.KindMessage:        onMessage,
	irc.KindJoin:           onJoin,
	irc.KindPart:           onPart,
	irc.KindKick:           onKick,
	irc.KindQuit:           onQuit,
	irc.KindNick:           onNick,
	irc.KindTopic:          onTopic,
	irc.KindUserList:       onUserList,
	irc.KindNames:          onNames,
	irc.KindChannelList:    onChannelList,
	irc.KindChannelListRow: onChannelListRow,
	irc.KindChannelListEnd: onChannelListEnd,
	irc.KindAuthenticated:  onAuthenticated,
	irc.KindReconnecting:   onReconnecting,
	irc.KindConnected:      onConnected,
	irc.KindRegistered:     onConnected,
	irc.KindClose:          onClose,
	irc.KindError:          onError,
	irc.KindNotice:         onNotice,
}

// Apply folds one event into st
func Apply(st *model.State, ev irc.Event) []Effect {
	srv := st.Server(ev.ServerID)
	if srv == nil {
		logger.Log.Debug().Str("server", ev.ServerID).Str("kind", string(ev.Kind)).Msg("Dropping event for unknown server")
		return nil
	}
	if ev.Generation != srv.Generation {
		logger.Log.Debug().
			Str("server", ev.ServerID).
			Str("kind", string(ev.Kind)).
			Uint64("event_generation", ev.Generation).
			Uint64("generation", srv.Generation).
			Msg("Dropping stale event")
		return nil
	}
	h, ok := handlers[ev.Kind]
	if !ok {
		return nil
	}
	return h(st, srv, ev)
}

// ExpireDirectory runs the listing fallback for generation gen. The
// directory is refreshed only if that listing is still being collected.
func ExpireDirectory(st *model.State, serverID string, gen uint64) []Effect {
	srv := st.Server(serverID)
	if srv == nil || !srv.ExpireDirectory(gen) {
		return nil
	}
	logger.Log.Debug().Str("server", serverID).Uint64("directory_generation", gen).Msg("Channel listing timed out, publishing partial list")
	return []Effect{Notify{Scope: ScopeDirectory, ServerID: serverID}}
}

// RequestDirectory clears the listing cache for a fresh request and
// returns the effects that arm its fallback timer
func RequestDirectory(srv *model.Server) []Effect {
	gen := srv.BeginDirectory()
	return []Effect{
		Notify{Scope: ScopeDirectory, ServerID: srv.ID},
		ArmDirectoryTimer{ServerID: srv.ID, DirectoryGen: gen},
	}
}

// DiscoveryDue reports whether a discovery scheduled for generation gen
// should still be sent
func DiscoveryDue(st *model.State, serverID string, gen uint64) bool {
	srv := st.Server(serverID)
	return srv != nil && srv.Generation == gen && srv.Status == model.StatusConnected
}

// EnsurePMChannel returns the private conversation with nick, creating it
// on first use
func EnsurePMChannel(st *model.State, srv *model.Server, nick string) (*model.Channel, []Effect) {
	id := model.PMChannelID(nick)
	if ch := srv.Channel(id); ch != nil {
		return ch, nil
	}
	ch := model.NewChannel(id, nick)
	ch.Topic = model.PMTopic(nick)
	if err := srv.AddChannel(ch); err != nil {
		logger.Log.Error().Err(err).Str("server", srv.ID).Msg("Failed to open private conversation")
		return srv.Channel(id), nil
	}
	return ch, []Effect{Notify{Scope: ScopeChannels, ServerID: srv.ID}}
}

// ensureChannel returns a group channel, creating it as a self-join would
func ensureChannel(st *model.State, srv *model.Server, name string) (*model.Channel, []Effect) {
	if ch := srv.Channel(name); ch != nil {
		return ch, nil
	}
	ch := model.NewChannel(name, name)
	if err := srv.AddChannel(ch); err != nil {
		logger.Log.Error().Err(err).Str("server", srv.ID).Str("channel", name).Msg("Failed to add channel")
		return srv.Channel(name), nil
	}
	effs := []Effect{Notify{Scope: ScopeChannels, ServerID: srv.ID}}
	if tracker.ChannelAdded(st, srv, ch.ID) {
		effs = append(effs, Notify{Scope: ScopeActive, ServerID: srv.ID, ChannelID: ch.ID})
	}
	return ch, effs
}

// dropChannel deletes a channel the user is no longer in
func dropChannel(st *model.State, srv *model.Server, id string) []Effect {
	if !srv.RemoveChannel(id) {
		return nil
	}
	effs := []Effect{Notify{Scope: ScopeChannels, ServerID: srv.ID}}
	if tracker.ChannelRemoved(st, srv, id) {
		effs = append(effs, Notify{Scope: ScopeActive, ServerID: srv.ID, ChannelID: st.ActiveChannelID})
	}
	return effs
}

func system(st *model.State, srv *model.Server, ch *model.Channel, text string) Effect {
	msg := st.AppendSystem(ch, text)
	return Notify{Scope: ScopeMessages, ServerID: srv.ID, ChannelID: ch.ID, Message: &msg}
}

func status(st *model.State, srv *model.Server, text string) Effect {
	msg := st.AppendStatus(srv, text)
	return Notify{Scope: ScopeMessages, ServerID: srv.ID, Message: &msg}
}

func broadcast(st *model.State, srv *model.Server, text string) Effect {
	msg := st.Broadcast(srv, text)
	return Notify{Scope: ScopeMessages, ServerID: srv.ID, Message: &msg}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func onMessage(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	if ev.Nick == "" || ev.Target == "" {
		return nil
	}
	ch := srv.Channel(ev.Target)
	var effs []Effect
	private := false
	if ch == nil {
		if !srv.IsSelf(ev.Target) {
			return nil
		}
		private = true
		ch, effs = EnsurePMChannel(st, srv, ev.Nick)
		if ch == nil {
			return nil
		}
	}

	var msg model.Message
	if ev.Action {
		msg = st.AppendSystem(ch, fmt.Sprintf("* %s %s", ev.Nick, ev.Text))
	} else {
		msg = st.AppendUser(ch, ev.Nick, ev.Text)
	}
	effs = append(effs, Notify{Scope: ScopeMessages, ServerID: srv.ID, ChannelID: ch.ID, Message: &msg})
	if private {
		effs = append(effs, Alert{ServerID: srv.ID, From: ev.Nick, Text: ev.Text})
	}
	return effs
}

func onJoin(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	if ev.Channel == "" || ev.Nick == "" {
		return nil
	}
	if srv.IsSelf(ev.Nick) {
		ch, effs := ensureChannel(st, srv, ev.Channel)
		if ch == nil {
			return nil
		}
		return append(effs, system(st, srv, ch, "You joined "+ev.Channel))
	}
	ch := srv.Channel(ev.Channel)
	if ch == nil {
		return nil
	}
	ch.SetUser(ev.Nick, model.ModeNone)
	return []Effect{
		Notify{Scope: ScopeUsers, ServerID: srv.ID, ChannelID: ch.ID},
		system(st, srv, ch, ev.Nick+" joined the channel"),
	}
}

func onPart(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	ch := srv.Channel(ev.Channel)
	if ch == nil {
		return nil
	}
	if srv.IsSelf(ev.Nick) {
		text := "You left " + ch.ID
		if ev.Text != "" {
			text += " (" + ev.Text + ")"
		}
		effs := []Effect{status(st, srv, text)}
		return append(effs, dropChannel(st, srv, ch.ID)...)
	}
	if !ch.RemoveUser(ev.Nick) {
		return nil
	}
	return []Effect{
		Notify{Scope: ScopeUsers, ServerID: srv.ID, ChannelID: ch.ID},
		system(st, srv, ch, ev.Nick+" left the channel"),
	}
}

func onKick(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	ch := srv.Channel(ev.Channel)
	if ch == nil {
		return nil
	}
	reason := orDefault(ev.Text, constants.DefaultReason)
	if srv.IsSelf(ev.Nick) {
		effs := []Effect{status(st, srv, fmt.Sprintf("You were kicked from %s by %s (%s)", ch.ID, ev.By, reason))}
		return append(effs, dropChannel(st, srv, ch.ID)...)
	}
	if !ch.RemoveUser(ev.Nick) {
		return nil
	}
	return []Effect{
		Notify{Scope: ScopeUsers, ServerID: srv.ID, ChannelID: ch.ID},
		system(st, srv, ch, fmt.Sprintf("%s was kicked by %s (%s)", ev.Nick, ev.By, reason)),
	}
}

func onQuit(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	if ev.Nick == "" || srv.IsSelf(ev.Nick) {
		return nil
	}
	reason := orDefault(ev.Text, constants.DefaultReason)
	var effs []Effect
	for _, ch := range srv.Channels() {
		if !ch.RemoveUser(ev.Nick) {
			continue
		}
		effs = append(effs,
			Notify{Scope: ScopeUsers, ServerID: srv.ID, ChannelID: ch.ID},
			system(st, srv, ch, fmt.Sprintf("%s quit (%s)", ev.Nick, reason)),
		)
	}
	return effs
}

func onNick(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	if ev.Nick == "" || ev.NewNick == "" {
		return nil
	}
	var effs []Effect
	text := fmt.Sprintf("%s is now known as %s", ev.Nick, ev.NewNick)
	for _, ch := range srv.Channels() {
		if !ch.RenameUser(ev.Nick, ev.NewNick) {
			continue
		}
		effs = append(effs,
			Notify{Scope: ScopeUsers, ServerID: srv.ID, ChannelID: ch.ID},
			system(st, srv, ch, text),
		)
	}
	if srv.IsSelf(ev.Nick) {
		srv.Nickname = ev.NewNick
		effs = append(effs,
			status(st, srv, text),
			Notify{Scope: ScopeServers, ServerID: srv.ID},
			Save{},
		)
	}
	return effs
}

func onTopic(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	ch := srv.Channel(ev.Channel)
	if ch == nil {
		return nil
	}
	ch.Topic = ev.Text
	return []Effect{
		Notify{Scope: ScopeTopic, ServerID: srv.ID, ChannelID: ch.ID},
		system(st, srv, ch, "Topic: "+orDefault(ev.Text, "No topic set")),
	}
}

func onUserList(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	ch := srv.Channel(ev.Channel)
	if ch == nil {
		return nil
	}
	ch.ReplaceUsers(ev.Names)
	return []Effect{Notify{Scope: ScopeUsers, ServerID: srv.ID, ChannelID: ch.ID}}
}

// onNames treats a membership list for an untracked channel as proof that
// the server already has us in it, e.g. state replayed by a bouncer
func onNames(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	if ev.Channel == "" {
		return nil
	}
	ch, effs := ensureChannel(st, srv, ev.Channel)
	if ch == nil {
		return nil
	}
	ch.ReplaceUsers(ev.Names)
	return append(effs, Notify{Scope: ScopeUsers, ServerID: srv.ID, ChannelID: ch.ID})
}

func onChannelList(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	srv.ReplaceDirectory(ev.Entries)
	return []Effect{Notify{Scope: ScopeDirectory, ServerID: srv.ID}}
}

func onChannelListRow(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	var effs []Effect
	for _, e := range ev.Entries {
		if srv.AddDirectoryRow(e) {
			effs = append(effs, ArmDirectoryTimer{ServerID: srv.ID, DirectoryGen: srv.DirectoryGen})
		}
	}
	return effs
}

func onChannelListEnd(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	if !srv.EndDirectory() {
		return nil
	}
	return []Effect{Notify{Scope: ScopeDirectory, ServerID: srv.ID}}
}

func onAuthenticated(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	return []Effect{broadcast(st, srv, "Successfully authenticated with server")}
}

func onReconnecting(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	next, ok := session.Next(srv.Status, session.SignalReconnecting)
	if !ok {
		return nil
	}
	srv.Status = next
	return []Effect{
		Notify{Scope: ScopeServers, ServerID: srv.ID},
		broadcast(st, srv, "Reconnecting to server..."),
	}
}

func onConnected(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	sig := session.SignalConnected
	if ev.Kind == irc.KindRegistered {
		sig = session.SignalRegistered
	}
	next, ok := session.Next(srv.Status, sig)
	if !ok {
		return nil
	}
	srv.Status = next
	if ev.Nick != "" {
		srv.Nickname = ev.Nick
	}
	return []Effect{
		Notify{Scope: ScopeServers, ServerID: srv.ID},
		broadcast(st, srv, fmt.Sprintf("Connected to %s as %s", srv.Address(), srv.Nickname)),
		ScheduleDiscovery{ServerID: srv.ID, Generation: srv.Generation},
		Save{},
	}
}

func onClose(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	next, ok := session.Next(srv.Status, session.SignalClose)
	if !ok {
		return nil
	}
	srv.Status = next
	return []Effect{
		Notify{Scope: ScopeServers, ServerID: srv.ID},
		broadcast(st, srv, "Disconnected from server"),
	}
}

func onError(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	text := "Error: " + orDefault(ev.Text, "Unknown error")
	if ch := srv.Channel(ev.Channel); ch != nil {
		return []Effect{system(st, srv, ch, text)}
	}
	return []Effect{broadcast(st, srv, text)}
}

func onNotice(st *model.State, srv *model.Server, ev irc.Event) []Effect {
	text := ev.Text
	if ev.Nick != "" {
		text = fmt.Sprintf("-%s- %s", ev.Nick, ev.Text)
	}
	if ch := srv.Channel(ev.Channel); ch != nil {
		return []Effect{system(st, srv, ch, text)}
	}
	return []Effect{status(st, srv, text)}
}
