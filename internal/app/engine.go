// Package app runs the client core: one goroutine owns all client state
// and applies protocol events, user input and timers in arrival order.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matt0x6f/ircsession/internal/command"
	"github.com/matt0x6f/ircsession/internal/constants"
	"github.com/matt0x6f/ircsession/internal/events"
	"github.com/matt0x6f/ircsession/internal/irc"
	"github.com/matt0x6f/ircsession/internal/logger"
	"github.com/matt0x6f/ircsession/internal/metrics"
	"github.com/matt0x6f/ircsession/internal/model"
	"github.com/matt0x6f/ircsession/internal/notify"
	"github.com/matt0x6f/ircsession/internal/reconcile"
	"github.com/matt0x6f/ircsession/internal/session"
	"github.com/matt0x6f/ircsession/internal/storage"
	"github.com/matt0x6f/ircsession/internal/tracker"
	"github.com/matt0x6f/ircsession/internal/validation"
)

// ErrStopped is returned by calls made after Run has returned
var ErrStopped = errors.New("engine stopped")

// Snapshotter accepts server configuration snapshots for saving
type Snapshotter interface {
	Submit(records map[string]storage.ServerRecord)
}

// Options configures an Engine. Zero durations fall back to the defaults
// in constants.
type Options struct {
	Dialer           session.Dialer
	Saver            Snapshotter
	Notifier         notify.Notifier
	Bus              *events.EventBus
	RealName         string
	QuitMessage      string
	ReconnectFreq    time.Duration
	ConnectTimeout   time.Duration
	DiscoveryDelay   time.Duration
	DirectoryTimeout time.Duration
	AutoConnectDelay time.Duration
	StaggerDelay     time.Duration
}

// ConnectRequest describes a new server
type ConnectRequest struct {
	Name     string
	Host     string
	Port     int
	Nickname string
	Password string
	TLS      bool
}

// Engine is the single consumer of client state
type Engine struct {
	opts       Options
	st         *model.State
	sessions   map[string]*session.Session
	dispatcher *command.Dispatcher
	queue      chan func()
	stopped    chan struct{}
}

// New creates an engine; nothing happens until Run is called
func New(opts Options) *Engine {
	if opts.Dialer == nil {
		opts.Dialer = session.IRCDialer
	}
	if opts.Bus == nil {
		opts.Bus = events.NewEventBus()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.RealName == "" {
		opts.RealName = constants.DefaultRealName
	}
	if opts.QuitMessage == "" {
		opts.QuitMessage = constants.DefaultQuitMessage
	}
	if opts.DiscoveryDelay == 0 {
		opts.DiscoveryDelay = constants.DiscoveryDelay
	}
	if opts.DirectoryTimeout == 0 {
		opts.DirectoryTimeout = constants.DirectoryTimeout
	}
	if opts.AutoConnectDelay == 0 {
		opts.AutoConnectDelay = constants.AutoConnectDelay
	}
	if opts.StaggerDelay == 0 {
		opts.StaggerDelay = constants.ConnectionStaggerDelay
	}

	e := &Engine{
		opts:     opts,
		st:       model.NewState(),
		sessions: make(map[string]*session.Session),
		queue:    make(chan func(), 256),
		stopped:  make(chan struct{}),
	}
	e.dispatcher = command.New(func(id string) *session.Session { return e.sessions[id] }, opts.QuitMessage)
	return e
}

// Bus returns the bus projection updates are published on
func (e *Engine) Bus() *events.EventBus {
	return e.opts.Bus
}

// Run processes queued work until ctx is cancelled, then quits every live
// connection. It must be called exactly once.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.stopped)
	logger.Log.Debug().Msg("Engine started")
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			logger.Log.Debug().Msg("Engine stopped")
			return
		case fn := <-e.queue:
			e.safely(fn)
		}
	}
}

func (e *Engine) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error().Interface("panic", r).Msg("PANIC in engine task")
		}
	}()
	fn()
}

// post enqueues fn without waiting for it
func (e *Engine) post(fn func()) {
	select {
	case e.queue <- fn:
	case <-e.stopped:
	}
}

// exec runs fn on the engine goroutine and waits for it
func (e *Engine) exec(fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case e.queue <- task:
	case <-e.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrStopped
	}
}

// after runs fn on the engine goroutine once d has elapsed
func (e *Engine) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { e.post(fn) })
}

// sink receives events from connection goroutines
func (e *Engine) sink(ev irc.Event) {
	e.post(func() { e.applyEvent(ev) })
}

func (e *Engine) applyEvent(ev irc.Event) {
	if srv := e.st.Server(ev.ServerID); srv != nil {
		if srv.Generation != ev.Generation {
			metrics.RecordStaleEvent()
		} else {
			metrics.RecordEvent(string(ev.Kind))
		}
	}
	e.applyEffects(events.EventSourceIRC, reconcile.Apply(e.st, ev))
}

var scopeEvents = map[reconcile.Scope]string{
	reconcile.ScopeServers:   events.EventUIServers,
	reconcile.ScopeChannels:  events.EventUIChannels,
	reconcile.ScopeMessages:  events.EventUIMessages,
	reconcile.ScopeUsers:     events.EventUIUsers,
	reconcile.ScopeTopic:     events.EventUITopic,
	reconcile.ScopeDirectory: events.EventUIDirectory,
	reconcile.ScopeActive:    events.EventUIActive,
}

// applyEffects carries out effects; source tags the projection events
func (e *Engine) applyEffects(source events.EventSource, effs []reconcile.Effect) {
	for _, eff := range effs {
		switch eff := eff.(type) {
		case reconcile.Notify:
			ev := events.Event{
				Type:      scopeEvents[eff.Scope],
				ServerID:  eff.ServerID,
				ChannelID: eff.ChannelID,
				Message:   eff.Message,
				Timestamp: time.Now(),
				Source:    source,
			}
			if srv := e.st.Server(eff.ServerID); srv != nil {
				ev.ServerName = srv.Name
			}
			e.opts.Bus.EmitSync(ev)
			if eff.Scope == reconcile.ScopeServers {
				e.recordServers()
			}
		case reconcile.Save:
			e.save()
		case reconcile.ScheduleDiscovery:
			e.after(e.opts.DiscoveryDelay, func() { e.discover(eff.ServerID, eff.Generation) })
		case reconcile.ArmDirectoryTimer:
			e.after(e.opts.DirectoryTimeout, func() {
				e.applyEffects(events.EventSourceSystem, reconcile.ExpireDirectory(e.st, eff.ServerID, eff.DirectoryGen))
			})
		case reconcile.Alert:
			name := eff.ServerID
			if srv := e.st.Server(eff.ServerID); srv != nil {
				name = srv.Name
			}
			e.opts.Notifier.Notify(name, eff.From, eff.Text)
		}
	}
}

// discover asks for the name list and the channel directory once the
// connection has settled
func (e *Engine) discover(serverID string, gen uint64) {
	if !reconcile.DiscoveryDue(e.st, serverID, gen) {
		logger.Log.Debug().Str("server", serverID).Uint64("generation", gen).Msg("Skipping discovery for superseded connection")
		return
	}
	srv := e.st.Server(serverID)
	sess := e.sessions[serverID]
	if sess == nil {
		return
	}
	if err := sess.RequestNames(); err != nil {
		logger.Log.Warn().Err(err).Str("server", serverID).Msg("Failed to request names")
	}
	e.applyEffects(events.EventSourceSystem, reconcile.RequestDirectory(srv))
	if err := sess.RequestDirectory(); err != nil {
		logger.Log.Warn().Err(err).Str("server", serverID).Msg("Failed to request channel list")
	}
}

func (e *Engine) save() {
	if e.opts.Saver == nil {
		return
	}
	e.opts.Saver.Submit(e.snapshot())
}

// snapshot builds the durable configuration of every server
func (e *Engine) snapshot() map[string]storage.ServerRecord {
	records := make(map[string]storage.ServerRecord)
	for i, srv := range e.st.Servers() {
		records[srv.ID] = storage.ServerRecord{
			ID:                srv.ID,
			Name:              srv.Name,
			Host:              srv.Host,
			Port:              srv.Port,
			Nickname:          srv.Nickname,
			Password:          srv.Password,
			TLS:               srv.TLS,
			LastActiveChannel: srv.LastActiveChannel,
			Position:          i,
		}
	}
	return records
}

func (e *Engine) recordServers() {
	byStatus := make(map[string]int)
	for _, srv := range e.st.Servers() {
		byStatus[string(srv.Status)]++
	}
	metrics.SetServers(byStatus)
}

func (e *Engine) newSession(srv *model.Server) *session.Session {
	cfg := irc.Config{
		Host:           srv.Host,
		Port:           srv.Port,
		Nick:           srv.Nickname,
		RealName:       e.opts.RealName,
		Password:       srv.Password,
		TLS:            srv.TLS,
		ReconnectFreq:  e.opts.ReconnectFreq,
		ConnectTimeout: e.opts.ConnectTimeout,
		QuitMessage:    e.opts.QuitMessage,
	}
	sess := session.New(srv.ID, cfg, e.opts.Dialer, e.sink)
	e.sessions[srv.ID] = sess
	return sess
}

// dial starts a new connection generation for srv. srv must already be
// in the connecting state.
func (e *Engine) dial(srv *model.Server, sess *session.Session) {
	sess.SetNick(srv.Nickname)
	tls := ""
	if srv.TLS {
		tls = " (SSL)"
	}
	msg := e.st.Broadcast(srv, fmt.Sprintf("Connecting to %s as %s%s...", srv.Address(), srv.Nickname, tls))
	e.applyEffects(events.EventSourceSystem, []reconcile.Effect{
		reconcile.Notify{Scope: reconcile.ScopeServers, ServerID: srv.ID},
		reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: srv.ID, Message: &msg},
	})

	err := sess.Connect()
	srv.Generation = sess.Generation()
	if err == nil {
		return
	}
	logger.Log.Error().Err(err).Str("server", srv.ID).Msg("Failed to connect")
	next, _ := session.Next(srv.Status, session.SignalClose)
	srv.Status = next
	fail := e.st.Broadcast(srv, "Error: "+err.Error())
	e.applyEffects(events.EventSourceSystem, []reconcile.Effect{
		reconcile.Notify{Scope: reconcile.ScopeServers, ServerID: srv.ID},
		reconcile.Notify{Scope: reconcile.ScopeMessages, ServerID: srv.ID, Message: &fail},
	})
}

// Connect adds a server and starts connecting to it. The new server
// becomes active.
func (e *Engine) Connect(req ConnectRequest) (string, error) {
	req.Host = strings.TrimSpace(req.Host)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Name == "" {
		req.Name = req.Host
	}
	if err := validation.ValidateServerConfig(req.Name, req.Host, req.Port, req.Nickname); err != nil {
		return "", err
	}

	id := uuid.NewString()
	err := e.exec(func() {
		srv := model.NewServer(id, req.Name, req.Host, req.Port, req.Nickname)
		srv.Password = req.Password
		srv.TLS = req.TLS
		if err := e.st.AddServer(srv); err != nil {
			logger.Log.Error().Err(err).Str("server", id).Msg("Failed to add server")
			return
		}
		logger.Log.Info().Str("server", id).Str("address", srv.Address()).Str("nick", srv.Nickname).Msg("Connecting to server")

		tracker.SelectServer(e.st, id)
		e.applyEffects(events.EventSourceUser, []reconcile.Effect{
			reconcile.Notify{Scope: reconcile.ScopeActive, ServerID: id},
			reconcile.Save{},
		})
		e.dial(srv, e.newSession(srv))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Restore recreates persisted servers in the disconnected state. With
// autoConnect each one is dialled after a staggered delay.
func (e *Engine) Restore(records map[string]storage.ServerRecord, autoConnect bool) error {
	list := make([]storage.ServerRecord, 0, len(records))
	for _, rec := range records {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Position != list[j].Position {
			return list[i].Position < list[j].Position
		}
		return list[i].ID < list[j].ID
	})

	return e.exec(func() {
		var restored []string
		for _, rec := range list {
			srv := model.NewServer(rec.ID, rec.Name, rec.Host, rec.Port, rec.Nickname)
			srv.Password = rec.Password
			srv.TLS = rec.TLS
			srv.Status = model.StatusDisconnected
			srv.LastActiveChannel = rec.LastActiveChannel
			if err := e.st.AddServer(srv); err != nil {
				logger.Log.Warn().Err(err).Str("server", rec.ID).Msg("Skipping restored server")
				continue
			}
			e.newSession(srv)
			restored = append(restored, srv.ID)
		}
		logger.Log.Info().Int("count", len(restored)).Msg("Restored servers")

		if e.st.ActiveServerID == "" && len(restored) > 0 {
			tracker.SelectServer(e.st, restored[0])
		}
		e.applyEffects(events.EventSourceSystem, []reconcile.Effect{
			reconcile.Notify{Scope: reconcile.ScopeServers},
			reconcile.Notify{Scope: reconcile.ScopeActive, ServerID: e.st.ActiveServerID},
		})

		if !autoConnect {
			return
		}
		for i, id := range restored {
			id := id // per-iteration copy; go.mod targets pre-1.22 loop semantics
			delay := e.opts.AutoConnectDelay + time.Duration(i)*e.opts.StaggerDelay
			logger.Log.Info().Str("server", id).Dur("delay", delay).Msg("Scheduling auto-connect for server")
			e.after(delay, func() { e.autoConnect(id) })
		}
	})
}

func (e *Engine) autoConnect(id string) {
	srv := e.st.Server(id)
	sess := e.sessions[id]
	if srv == nil || sess == nil {
		return
	}
	next, ok := session.Next(srv.Status, session.SignalConnectRequest)
	if !ok {
		logger.Log.Debug().Str("server", id).Str("status", string(srv.Status)).Msg("Skipping auto-connect")
		return
	}
	srv.Status = next
	e.dial(srv, sess)
}

// Input dispatches one line typed by the user against the active context
func (e *Engine) Input(text string) error {
	return e.exec(func() {
		e.applyEffects(events.EventSourceUser, e.dispatcher.Dispatch(e.st, text))
	})
}

// SelectServer makes a server active
func (e *Engine) SelectServer(id string) error {
	var err error
	execErr := e.exec(func() {
		if !tracker.SelectServer(e.st, id) {
			err = fmt.Errorf("%w: %s", model.ErrNoSuchServer, id)
			return
		}
		e.applyEffects(events.EventSourceUser, []reconcile.Effect{reconcile.Notify{Scope: reconcile.ScopeActive, ServerID: id}, reconcile.Save{}})
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// SelectChannel makes a channel of a server active
func (e *Engine) SelectChannel(serverID, channelID string) error {
	var err error
	execErr := e.exec(func() {
		if e.st.Server(serverID) == nil {
			err = fmt.Errorf("%w: %s", model.ErrNoSuchServer, serverID)
			return
		}
		if !tracker.SelectChannel(e.st, serverID, channelID) {
			err = fmt.Errorf("%w: %s", model.ErrNoSuchChannel, channelID)
			return
		}
		e.applyEffects(events.EventSourceUser, []reconcile.Effect{
			reconcile.Notify{Scope: reconcile.ScopeActive, ServerID: serverID, ChannelID: channelID},
			reconcile.Save{},
		})
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// DeleteServer quits a live connection and forgets the server
func (e *Engine) DeleteServer(id string) error {
	var err error
	execErr := e.exec(func() {
		srv := e.st.Server(id)
		if srv == nil {
			err = fmt.Errorf("%w: %s", model.ErrNoSuchServer, id)
			return
		}
		if sess := e.sessions[id]; sess != nil && srv.Status != model.StatusDisconnected {
			sess.Quit(constants.ServerDeletedMessage)
		}
		delete(e.sessions, id)
		e.st.RemoveServer(id)
		tracker.ServerRemoved(e.st, id)
		logger.Log.Info().Str("server", id).Str("name", srv.Name).Msg("Deleted server")

		e.applyEffects(events.EventSourceUser, []reconcile.Effect{
			reconcile.Notify{Scope: reconcile.ScopeServers, ServerID: id},
			reconcile.Notify{Scope: reconcile.ScopeActive, ServerID: e.st.ActiveServerID},
			reconcile.Save{},
		})
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// View runs fn with read access to the client state on the engine
// goroutine. fn must not retain st or mutate it.
func (e *Engine) View(fn func(st *model.State)) error {
	return e.exec(func() { fn(e.st) })
}

// shutdown quits every live connection
func (e *Engine) shutdown() {
	for _, srv := range e.st.Servers() {
		sess := e.sessions[srv.ID]
		if sess == nil || srv.Status == model.StatusDisconnected {
			continue
		}
		sess.Quit(e.opts.QuitMessage)
		srv.Generation = sess.Generation()
		srv.Status = model.StatusDisconnected
		e.st.AppendStatus(srv, "Disconnected from server")
	}
}
