package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt0x6f/ircsession/internal/events"
	"github.com/matt0x6f/ircsession/internal/irc"
	"github.com/matt0x6f/ircsession/internal/model"
	"github.com/matt0x6f/ircsession/internal/session/sessiontest"
	"github.com/matt0x6f/ircsession/internal/storage"
)

type recordingSaver struct {
	mu        sync.Mutex
	snapshots []map[string]storage.ServerRecord
}

func (s *recordingSaver) Submit(records map[string]storage.ServerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, records)
}

func (s *recordingSaver) last() map[string]storage.ServerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return nil
	}
	return s.snapshots[len(s.snapshots)-1]
}

type alert struct{ server, from, text string }

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alert
}

func (n *recordingNotifier) Notify(server, from, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert{server, from, text})
}

func (n *recordingNotifier) all() []alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alert(nil), n.alerts...)
}

type harness struct {
	engine   *Engine
	dialer   *sessiontest.Dialer
	saver    *recordingSaver
	notifier *recordingNotifier
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		dialer:   &sessiontest.Dialer{},
		saver:    &recordingSaver{},
		notifier: &recordingNotifier{},
	}
	opts := Options{
		Dialer:           h.dialer.Dial,
		Saver:            h.saver,
		Notifier:         h.notifier,
		DiscoveryDelay:   time.Hour,
		DirectoryTimeout: time.Hour,
		AutoConnectDelay: time.Millisecond,
		StaggerDelay:     time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.engine = New(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.cancel = cancel
	go h.engine.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func (h *harness) connect(t *testing.T, name string) (string, *sessiontest.Conn) {
	t.Helper()
	id, err := h.engine.Connect(ConnectRequest{Name: name, Host: "irc.example.org", Port: 6667, Nickname: "gopher"})
	require.NoError(t, err)
	conn := h.dialer.Latest(id)
	require.NotNil(t, conn)
	return id, conn
}

// view reads state after everything queued so far has been applied
func (h *harness) view(t *testing.T, fn func(st *model.State)) {
	t.Helper()
	require.NoError(t, h.engine.View(fn))
}

func TestConnectRegisterJoin(t *testing.T) {
	h := newHarness(t)
	id, conn := h.connect(t, "Example")

	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})
	conn.Emit(irc.Event{Kind: irc.KindJoin, Nick: "gopher", Channel: "#general"})

	h.view(t, func(st *model.State) {
		srv := st.Server(id)
		require.NotNil(t, srv)
		assert.Equal(t, model.StatusConnected, srv.Status)
		require.Len(t, srv.Channels(), 1)
		assert.Equal(t, "#general", srv.Channels()[0].ID)
		assert.Equal(t, id, st.ActiveServerID)
		assert.Equal(t, "#general", st.ActiveChannelID)

		var connected, joined model.Message
		for _, m := range srv.Log {
			if m.Text == "Connected to irc.example.org:6667 as gopher" {
				connected = m
			}
		}
		for _, m := range srv.Channel("#general").Messages {
			if m.Text == "You joined #general" {
				joined = m
			}
		}
		require.NotZero(t, connected.Seq)
		require.NotZero(t, joined.Seq)
		assert.Less(t, connected.Seq, joined.Seq)
	})
}

func TestConnectAnnouncesAndSaves(t *testing.T) {
	h := newHarness(t)
	id, conn := h.connect(t, "Example")

	assert.Equal(t, "Connect", conn.Calls()[0].Method)
	assert.Equal(t, "gopher", conn.Config.Nick)
	assert.Equal(t, "irc.example.org", conn.Config.Host)

	h.view(t, func(st *model.State) {
		srv := st.Server(id)
		assert.Equal(t, model.StatusConnecting, srv.Status)
		require.NotEmpty(t, srv.Log)
		assert.Equal(t, "Connecting to irc.example.org:6667 as gopher...", srv.Log[0].Text)
	})

	rec, ok := h.saver.last()[id]
	require.True(t, ok)
	assert.Equal(t, "Example", rec.Name)
	assert.Equal(t, 6667, rec.Port)
}

func TestConnectRejectsInvalidConfig(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Connect(ConnectRequest{Host: "irc.example.org", Port: 0, Nickname: "gopher"})
	require.Error(t, err)

	h.view(t, func(st *model.State) {
		assert.Empty(t, st.Servers())
	})
	assert.Empty(t, h.dialer.Conns())
}

func TestDiscoveryAfterSettleDelay(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DiscoveryDelay = 10 * time.Millisecond })
	_, conn := h.connect(t, "Example")

	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})

	assert.Eventually(t, func() bool {
		var raws []string
		for _, c := range conn.Calls() {
			if c.Method == "Raw" {
				raws = append(raws, c.Args[0])
			}
		}
		return len(raws) == 2 && raws[0] == "NAMES *" && raws[1] == "LIST"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDiscoverySkippedForSupersededConnection(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DiscoveryDelay = 20 * time.Millisecond })
	_, conn := h.connect(t, "Example")

	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})
	require.NoError(t, h.engine.Input("/disconnect"))

	time.Sleep(60 * time.Millisecond)
	h.view(t, func(*model.State) {})
	for _, c := range conn.Calls() {
		assert.NotEqual(t, "Raw", c.Method, "discovery sent after disconnect: %s", c)
	}
}

func TestDirectoryFallbackFiresOnce(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DirectoryTimeout = 20 * time.Millisecond })
	id, conn := h.connect(t, "Example")
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})

	var mu sync.Mutex
	refreshes := 0
	h.engine.Bus().Subscribe(events.EventUIDirectory, events.SubscriberFunc(func(events.Event) {
		mu.Lock()
		refreshes++
		mu.Unlock()
	}))
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return refreshes
	}

	require.NoError(t, h.engine.Input("/list"))
	conn.Emit(irc.Event{Kind: irc.KindChannelListRow, Entries: []model.DirectoryEntry{{Name: "#go", Users: 42}}})

	assert.Eventually(t, func() bool { return count() == 2 }, 2*time.Second, 5*time.Millisecond)

	// The late end marker does not refresh again
	conn.Emit(irc.Event{Kind: irc.KindChannelListEnd})
	h.view(t, func(st *model.State) {
		assert.Len(t, st.Server(id).Directory, 1)
	})
	assert.Equal(t, 2, count())
}

func TestDisconnectIgnoresStaleReconnect(t *testing.T) {
	h := newHarness(t)
	id, conn := h.connect(t, "Example")
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})

	require.NoError(t, h.engine.Input("/disconnect"))
	conn.Emit(irc.Event{Kind: irc.KindReconnecting})
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})

	h.view(t, func(st *model.State) {
		assert.Equal(t, model.StatusDisconnected, st.Server(id).Status)
	})
	assert.Equal(t, "Quit(Disconnected by user)", conn.Last().String())
}

func TestPrivateMessageAlerts(t *testing.T) {
	h := newHarness(t)
	id, conn := h.connect(t, "Example")
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})
	conn.Emit(irc.Event{Kind: irc.KindMessage, Nick: "alice", Target: "gopher", Text: "psst"})

	h.view(t, func(st *model.State) {
		pm := st.Server(id).Channel(model.PMChannelID("alice"))
		require.NotNil(t, pm)
		assert.Equal(t, "Private conversation with alice", pm.Topic)
	})
	assert.Equal(t, []alert{{server: "Example", from: "alice", text: "psst"}}, h.notifier.all())
}

func TestProjectionOrder(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var texts []string
	h.engine.Bus().Subscribe(events.EventUIMessages, events.SubscriberFunc(func(e events.Event) {
		mu.Lock()
		texts = append(texts, e.Message.Text)
		mu.Unlock()
	}))

	_, conn := h.connect(t, "Example")
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})
	conn.Emit(irc.Event{Kind: irc.KindJoin, Nick: "gopher", Channel: "#general"})
	conn.Emit(irc.Event{Kind: irc.KindMessage, Nick: "alice", Target: "#general", Text: "hi"})
	h.view(t, func(*model.State) {})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"Connecting to irc.example.org:6667 as gopher...",
		"Connected to irc.example.org:6667 as gopher",
		"You joined #general",
		"hi",
	}, texts)
}

func TestProjectionSources(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	sources := map[string]events.EventSource{}
	h.engine.Bus().Subscribe(events.EventUIMessages, events.SubscriberFunc(func(e events.Event) {
		mu.Lock()
		sources[e.Message.Text] = e.Source
		mu.Unlock()
	}))

	_, conn := h.connect(t, "Example")
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})
	conn.Emit(irc.Event{Kind: irc.KindJoin, Nick: "gopher", Channel: "#general"})
	h.view(t, func(*model.State) {})
	require.NoError(t, h.engine.Input("hello there"))
	h.view(t, func(*model.State) {})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events.EventSourceSystem, sources["Connecting to irc.example.org:6667 as gopher..."])
	assert.Equal(t, events.EventSourceIRC, sources["You joined #general"])
	assert.Equal(t, events.EventSourceUser, sources["hello there"])
}

func TestDeleteServerFallsBackToFirst(t *testing.T) {
	h := newHarness(t)
	first, _ := h.connect(t, "One")
	second, conn := h.connect(t, "Two")

	h.view(t, func(st *model.State) {
		assert.Equal(t, second, st.ActiveServerID)
	})

	require.NoError(t, h.engine.DeleteServer(second))
	assert.Equal(t, "Quit(Server deleted by user)", conn.Last().String())

	h.view(t, func(st *model.State) {
		assert.Nil(t, st.Server(second))
		assert.Equal(t, first, st.ActiveServerID)
		assert.NoError(t, st.CheckActive())
	})
	snap := h.saver.last()
	assert.Contains(t, snap, first)
	assert.NotContains(t, snap, second)

	assert.ErrorIs(t, h.engine.DeleteServer("missing"), model.ErrNoSuchServer)
}

func TestDeleteDisconnectedServerDoesNotQuit(t *testing.T) {
	h := newHarness(t)
	id, conn := h.connect(t, "One")
	require.NoError(t, h.engine.Input("/disconnect"))
	calls := len(conn.Calls())

	require.NoError(t, h.engine.DeleteServer(id))
	assert.Len(t, conn.Calls(), calls)
}

func TestSelectChannelPersistsLastActive(t *testing.T) {
	h := newHarness(t)
	id, conn := h.connect(t, "One")
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})
	conn.Emit(irc.Event{Kind: irc.KindJoin, Nick: "gopher", Channel: "#go"})
	conn.Emit(irc.Event{Kind: irc.KindJoin, Nick: "gopher", Channel: "#rust"})

	require.NoError(t, h.engine.SelectChannel(id, "#rust"))
	assert.Equal(t, "#rust", h.saver.last()[id].LastActiveChannel)

	assert.ErrorIs(t, h.engine.SelectChannel(id, "#nope"), model.ErrNoSuchChannel)
	assert.ErrorIs(t, h.engine.SelectChannel("missing", "#go"), model.ErrNoSuchServer)
	assert.ErrorIs(t, h.engine.SelectServer("missing"), model.ErrNoSuchServer)
	require.NoError(t, h.engine.SelectServer(id))
}

func TestRestoreAndAutoConnect(t *testing.T) {
	h := newHarness(t)
	records := map[string]storage.ServerRecord{
		"b": {ID: "b", Name: "Two", Host: "two.example.org", Port: 6697, Nickname: "gopher", TLS: true, Position: 1},
		"a": {ID: "a", Name: "One", Host: "one.example.org", Port: 6667, Nickname: "gopher", LastActiveChannel: "#go", Position: 0},
	}
	require.NoError(t, h.engine.Restore(records, true))

	assert.Eventually(t, func() bool { return len(h.dialer.Conns()) == 2 }, 2*time.Second, 5*time.Millisecond)

	h.view(t, func(st *model.State) {
		servers := st.Servers()
		require.Len(t, servers, 2)
		assert.Equal(t, "a", servers[0].ID)
		assert.Equal(t, "b", servers[1].ID)
		assert.Equal(t, "a", st.ActiveServerID)
		assert.Equal(t, "#go", servers[0].LastActiveChannel)
		assert.Equal(t, model.StatusConnecting, servers[1].Status)
		assert.Equal(t, "Connecting to two.example.org:6697 as gopher (SSL)...", servers[1].Log[0].Text)
	})
	assert.True(t, h.dialer.Latest("b").Config.TLS)
}

func TestRestoreWithoutAutoConnect(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Restore(map[string]storage.ServerRecord{
		"a": {ID: "a", Name: "One", Host: "one.example.org", Port: 6667, Nickname: "gopher"},
	}, false))

	h.view(t, func(st *model.State) {
		assert.Equal(t, model.StatusDisconnected, st.Server("a").Status)
	})

	// /connect is the way back
	require.NoError(t, h.engine.Input("/connect"))
	h.view(t, func(st *model.State) {
		assert.Equal(t, model.StatusConnecting, st.Server("a").Status)
	})
	assert.Len(t, h.dialer.Conns(), 1)
}

func TestStoppedEngine(t *testing.T) {
	h := newHarness(t)
	_, conn := h.connect(t, "One")
	conn.Emit(irc.Event{Kind: irc.KindRegistered, Nick: "gopher"})
	h.view(t, func(*model.State) {})

	h.cancel()
	<-h.engine.stopped

	assert.Equal(t, "Quit(ircsession)", conn.Last().String())
	assert.ErrorIs(t, h.engine.Input("hello"), ErrStopped)
	_, err := h.engine.Connect(ConnectRequest{Host: "irc.example.org", Port: 6667, Nickname: "gopher"})
	assert.ErrorIs(t, err, ErrStopped)
}
