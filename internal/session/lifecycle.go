package session

import "github.com/matt0x6f/ircsession/internal/model"

// Signal drives the connection lifecycle
type Signal int

const (
	SignalRegistered Signal = iota
	SignalConnected
	SignalReconnecting
	SignalClose
	SignalConnectRequest
)

func (s Signal) String() string {
	switch s {
	case SignalRegistered:
		return "registered"
	case SignalConnected:
		return "connected"
	case SignalReconnecting:
		return "reconnecting"
	case SignalClose:
		return "close"
	case SignalConnectRequest:
		return "connect-request"
	default:
		return "unknown"
	}
}

// Next returns the status that follows cur on sig and whether a
// transition happened. A false result leaves the status unchanged and
// means no side effects should run.
func Next(cur model.Status, sig Signal) (model.Status, bool) {
	switch sig {
	case SignalRegistered, SignalConnected:
		if cur == model.StatusConnecting || cur == model.StatusReconnecting {
			return model.StatusConnected, true
		}
	case SignalReconnecting:
		if cur == model.StatusConnected {
			return model.StatusReconnecting, true
		}
	case SignalClose:
		if cur != model.StatusDisconnected {
			return model.StatusDisconnected, true
		}
	case SignalConnectRequest:
		if cur == model.StatusDisconnected {
			return model.StatusConnecting, true
		}
	}
	return cur, false
}
