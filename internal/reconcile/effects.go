package reconcile

import "github.com/matt0x6f/ircsession/internal/model"

// Scope names the part of the projection a Notify invalidates
type Scope string

const (
	ScopeServers   Scope = "servers"
	ScopeChannels  Scope = "channels"
	ScopeMessages  Scope = "messages"
	ScopeUsers     Scope = "users"
	ScopeTopic     Scope = "topic"
	ScopeDirectory Scope = "directory"
	ScopeActive    Scope = "active"
)

// Effect is a side effect requested by a state transition. Transitions
// never perform I/O themselves.
type Effect interface {
	effect()
}

// Notify tells the projection that something changed. Message is set
// when the change is a newly appended message; an empty ChannelID with
// a message means the server status buffer.
type Notify struct {
	Scope     Scope
	ServerID  string
	ChannelID string
	Message   *model.Message
}

// Save asks for the durable server configuration to be written
type Save struct{}

// ScheduleDiscovery asks for NAMES and LIST to be requested after the
// settle delay, provided the connection generation is still current
type ScheduleDiscovery struct {
	ServerID   string
	Generation uint64
}

// ArmDirectoryTimer asks for the listing fallback timer to be started
type ArmDirectoryTimer struct {
	ServerID     string
	DirectoryGen uint64
}

// Alert asks for a desktop notification about a private message
type Alert struct {
	ServerID string
	From     string
	Text     string
}

func (Notify) effect()            {}
func (Save) effect()              {}
func (ScheduleDiscovery) effect() {}
func (ArmDirectoryTimer) effect() {}
func (Alert) effect()             {}
