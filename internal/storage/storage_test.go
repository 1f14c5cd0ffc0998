package storage

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/matt0x6f/ircsession/internal/security"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	keyring.MockInit()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"), security.NewKeychain())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	records := map[string]ServerRecord{
		"a": {ID: "a", Name: "Libera", Host: "irc.libera.chat", Port: 6697, Nickname: "gopher", TLS: true,
			Password: "hunter2", LastActiveChannel: "#go", Position: 0},
		"b": {ID: "b", Name: "OFTC", Host: "irc.oftc.net", Port: 6667, Nickname: "gopher2", Position: 1},
	}
	require.NoError(t, s.Save(records))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	a := loaded["a"]
	assert.Equal(t, "Libera", a.Name)
	assert.Equal(t, "irc.libera.chat", a.Host)
	assert.Equal(t, 6697, a.Port)
	assert.True(t, a.TLS)
	assert.Equal(t, "hunter2", a.Password)
	assert.Equal(t, "#go", a.LastActiveChannel)
	assert.Empty(t, loaded["b"].Password)

	list, err := s.ListServers()
	require.NoError(t, err)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestSavePasswordNotInDatabase(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.Save(map[string]ServerRecord{
		"a": {ID: "a", Name: "n", Host: "h", Port: 1, Nickname: "x", Password: "hunter2"},
	}))

	var cols []string
	require.NoError(t, s.db.Select(&cols, "SELECT name FROM pragma_table_info('servers')"))
	assert.NotContains(t, cols, "password")
}

func TestSaveReplacesWholeSet(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.Save(map[string]ServerRecord{
		"a": {ID: "a", Name: "one", Host: "h", Port: 1, Nickname: "x", Password: "pw"},
		"b": {ID: "b", Name: "two", Host: "h", Port: 2, Nickname: "y"},
	}))

	require.NoError(t, s.Save(map[string]ServerRecord{
		"b": {ID: "b", Name: "renamed", Host: "h", Port: 2, Nickname: "z"},
	}))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "renamed", loaded["b"].Name)
	assert.Equal(t, "z", loaded["b"].Nickname)

	pw, err := security.NewKeychain().GetPassword("a")
	require.NoError(t, err)
	assert.Empty(t, pw)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, Migrate(s.db))
	assert.NoError(t, Migrate(s.db))
}

type recordingGateway struct {
	mu    sync.Mutex
	saves []map[string]ServerRecord
	err   error
}

func (g *recordingGateway) Save(records map[string]ServerRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves = append(g.saves, records)
	return g.err
}

func (g *recordingGateway) Load() (map[string]ServerRecord, error) {
	return nil, nil
}

func (g *recordingGateway) last() map[string]ServerRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.saves) == 0 {
		return nil
	}
	return g.saves[len(g.saves)-1]
}

func TestSaverWritesLatestSnapshot(t *testing.T) {
	gw := &recordingGateway{}
	saver := NewSaver(gw)

	saver.Submit(map[string]ServerRecord{"a": {ID: "a"}})
	saver.Submit(map[string]ServerRecord{"a": {ID: "a"}, "b": {ID: "b"}})

	assert.Eventually(t, func() bool {
		return len(gw.last()) == 2
	}, time.Second, 10*time.Millisecond)

	saver.Close()
	// Submissions after Close are dropped
	saver.Submit(map[string]ServerRecord{})
	assert.Len(t, gw.last(), 2)
}

func TestSaverCloseFlushesPending(t *testing.T) {
	gw := &recordingGateway{}
	saver := NewSaver(gw)
	saver.Submit(map[string]ServerRecord{"a": {ID: "a"}})
	saver.Close()

	assert.Contains(t, gw.last(), "a")
}

func TestSaverSurvivesGatewayErrors(t *testing.T) {
	gw := &recordingGateway{err: errors.New("disk full")}
	saver := NewSaver(gw)
	defer saver.Close()

	saver.Submit(map[string]ServerRecord{"a": {ID: "a"}})
	assert.Eventually(t, func() bool { return gw.last() != nil }, time.Second, 10*time.Millisecond)

	saver.Submit(map[string]ServerRecord{"b": {ID: "b"}})
	assert.Eventually(t, func() bool {
		_, ok := gw.last()["b"]
		return ok
	}, time.Second, 10*time.Millisecond)
}
