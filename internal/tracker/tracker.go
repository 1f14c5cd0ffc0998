// Package tracker keeps the active server/channel pair consistent.
package tracker

import "github.com/matt0x6f/ircsession/internal/model"

// SelectServer makes id the active server and restores its last active
// channel, falling back to its first channel or none
func SelectServer(st *model.State, id string) bool {
	srv := st.Server(id)
	if srv == nil {
		return false
	}
	st.ActiveServerID = id
	st.ActiveChannelID = ""
	if srv.LastActiveChannel != "" && srv.Channel(srv.LastActiveChannel) != nil {
		st.ActiveChannelID = srv.LastActiveChannel
	} else if first := srv.FirstChannel(); first != nil {
		st.ActiveChannelID = first.ID
	}
	// A server with no channels yet keeps a restored last channel
	// until that channel is joined again
	if st.ActiveChannelID != "" {
		srv.LastActiveChannel = st.ActiveChannelID
	}
	return true
}

// SelectChannel makes a channel of serverID active, selecting the server too
func SelectChannel(st *model.State, serverID, channelID string) bool {
	srv := st.Server(serverID)
	if srv == nil || srv.Channel(channelID) == nil {
		return false
	}
	st.ActiveServerID = serverID
	st.ActiveChannelID = channelID
	srv.LastActiveChannel = channelID
	return true
}

// ChannelAdded activates ch when it is the server's only channel. The
// server becomes active too if nothing is selected yet.
func ChannelAdded(st *model.State, srv *model.Server, channelID string) bool {
	if srv.ChannelCount() != 1 {
		return false
	}
	srv.LastActiveChannel = channelID
	if st.ActiveServerID == "" {
		st.ActiveServerID = srv.ID
	}
	if st.ActiveServerID == srv.ID {
		st.ActiveChannelID = channelID
		return true
	}
	return false
}

// ChannelRemoved repairs the active context after channelID was deleted
// from srv. The replacement is the first remaining channel of the same
// server, or none.
func ChannelRemoved(st *model.State, srv *model.Server, channelID string) bool {
	fallback := ""
	if first := srv.FirstChannel(); first != nil {
		fallback = first.ID
	}
	if srv.LastActiveChannel == "" || srv.LastActiveChannel == channelID {
		srv.LastActiveChannel = fallback
	}
	if st.ActiveServerID != srv.ID || st.ActiveChannelID != channelID {
		return false
	}
	st.ActiveChannelID = fallback
	return true
}

// ServerRemoved repairs the active context after a server was deleted.
// If it was active, the first remaining server is selected.
func ServerRemoved(st *model.State, serverID string) bool {
	if st.ActiveServerID != serverID {
		return false
	}
	st.ActiveServerID = ""
	st.ActiveChannelID = ""
	if first := st.FirstServer(); first != nil {
		SelectServer(st, first.ID)
	}
	return true
}
