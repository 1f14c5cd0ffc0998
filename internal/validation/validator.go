package validation

import (
	"fmt"
	"strings"

	"github.com/matt0x6f/ircsession/internal/constants"
)

// ValidateServerConfig validates the fields needed to open a connection
func ValidateServerConfig(name, host string, port int, nickname string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("server name is required")
	}
	if err := ValidateServerAddress(host, port); err != nil {
		return err
	}
	if err := ValidateNickname(nickname); err != nil {
		return err
	}
	return nil
}

// ValidateChannelName validates an IRC channel name
func ValidateChannelName(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("channel name is required")
	}
	if !strings.ContainsRune(constants.ChannelPrefixes, rune(channel[0])) {
		return fmt.Errorf("channel name must start with one of %s", constants.ChannelPrefixes)
	}
	// Channel names have length limits (typically 50 chars, but varies by server)
	if len(channel) > 200 {
		return fmt.Errorf("channel name too long (max 200 characters)")
	}
	if strings.ContainsAny(channel, " \x00\x07\x0A\x0D,") {
		return fmt.Errorf("channel name contains invalid characters")
	}
	return nil
}

// ValidateNickname validates a nickname before it is sent to a server
func ValidateNickname(nick string) error {
	if strings.TrimSpace(nick) == "" {
		return fmt.Errorf("nickname is required")
	}
	if len(nick) > 64 {
		return fmt.Errorf("nickname too long (max 64 characters)")
	}
	if strings.ContainsAny(nick, " ,*?!@\x00\x0A\x0D") {
		return fmt.Errorf("nickname contains invalid characters")
	}
	switch nick[0] {
	case '#', '&', ':', '$', '+', '-':
		return fmt.Errorf("nickname cannot start with %q", nick[0])
	}
	return nil
}

// ValidateServerAddress validates a server address and port
func ValidateServerAddress(address string, port int) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("server address is required")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
