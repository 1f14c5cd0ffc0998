package model

import (
	"fmt"
	"time"
)

// State is the whole client view: every server plus the active context.
// It is owned by a single consumer and is not safe for concurrent use.
type State struct {
	ActiveServerID  string
	ActiveChannelID string

	servers map[string]*Server
	order   []string
	seq     uint64

	// Now stamps appended messages; tests may replace it
	Now func() time.Time
}

// NewState returns an empty state
func NewState() *State {
	return &State{
		servers: make(map[string]*Server),
		Now:     time.Now,
	}
}

// AddServer registers srv at the end of the server order
func (st *State) AddServer(srv *Server) error {
	if _, ok := st.servers[srv.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateServer, srv.ID)
	}
	st.servers[srv.ID] = srv
	st.order = append(st.order, srv.ID)
	return nil
}

// RemoveServer deletes a server. Active pointers are left to the caller.
func (st *State) RemoveServer(id string) bool {
	if _, ok := st.servers[id]; !ok {
		return false
	}
	delete(st.servers, id)
	for i, sid := range st.order {
		if sid == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return true
}

// Server looks up a server by id
func (st *State) Server(id string) *Server {
	return st.servers[id]
}

// Servers returns servers in insertion order
func (st *State) Servers() []*Server {
	out := make([]*Server, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.servers[id])
	}
	return out
}

// FirstServer returns the earliest added server, or nil
func (st *State) FirstServer() *Server {
	if len(st.order) == 0 {
		return nil
	}
	return st.servers[st.order[0]]
}

// ActiveServer returns the selected server, or nil
func (st *State) ActiveServer() *Server {
	if st.ActiveServerID == "" {
		return nil
	}
	return st.servers[st.ActiveServerID]
}

// ActiveChannel returns the selected channel of the selected server, or nil
func (st *State) ActiveChannel() *Channel {
	srv := st.ActiveServer()
	if srv == nil || st.ActiveChannelID == "" {
		return nil
	}
	return srv.Channel(st.ActiveChannelID)
}

// CheckActive verifies that a non-empty active channel exists under a
// non-empty active server
func (st *State) CheckActive() error {
	if st.ActiveChannelID == "" {
		return nil
	}
	if st.ActiveServerID == "" {
		return fmt.Errorf("active channel %q without active server", st.ActiveChannelID)
	}
	srv := st.servers[st.ActiveServerID]
	if srv == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchServer, st.ActiveServerID)
	}
	if srv.Channel(st.ActiveChannelID) == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchChannel, st.ActiveChannelID)
	}
	return nil
}

func (st *State) next(typ MessageType, author, text string) Message {
	st.seq++
	return Message{
		Seq:    st.seq,
		Type:   typ,
		Author: author,
		Text:   text,
		Time:   st.Now(),
	}
}

// AppendSystem adds a system message to a channel
func (st *State) AppendSystem(ch *Channel, text string) Message {
	msg := st.next(MessageSystem, "", text)
	ch.Messages = append(ch.Messages, msg)
	return msg
}

// AppendUser adds a user-authored message to a channel
func (st *State) AppendUser(ch *Channel, author, text string) Message {
	msg := st.next(MessageUser, author, text)
	ch.Messages = append(ch.Messages, msg)
	return msg
}

// AppendStatus adds a system message to the server's status buffer only
func (st *State) AppendStatus(srv *Server, text string) Message {
	msg := st.next(MessageSystem, "", text)
	srv.Log = append(srv.Log, msg)
	return msg
}

// Broadcast records a server-wide system message in the status buffer
// and in every open channel of the server
func (st *State) Broadcast(srv *Server, text string) Message {
	msg := st.next(MessageSystem, "", text)
	srv.Log = append(srv.Log, msg)
	for _, ch := range srv.Channels() {
		ch.Messages = append(ch.Messages, msg)
	}
	return msg
}
