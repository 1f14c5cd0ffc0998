package constants

import "time"

// Connection timing constants
const (
	// AutoConnectDelay is the initial delay before reconnecting restored servers
	AutoConnectDelay = 1 * time.Second

	// ConnectionStaggerDelay is the delay between each server connection attempt
	ConnectionStaggerDelay = 500 * time.Millisecond

	// DiscoveryDelay is how long after registration the client waits before
	// asking the server for NAMES and LIST
	DiscoveryDelay = 2 * time.Second

	// DirectoryTimeout is the fallback after which a partial channel listing
	// is published even if the end-of-list marker never arrived
	DirectoryTimeout = 10 * time.Second
)

// Default texts sent to servers
const (
	DefaultQuitMessage      = "ircsession"
	DisconnectByUserMessage = "Disconnected by user"
	ServerDeletedMessage    = "Server deleted by user"
	DefaultReason           = "No reason given"
	DefaultRealName         = "ircsession user"
)

// ChannelPrefixes are the sigils that start a group channel name
const ChannelPrefixes = "#&+!"
