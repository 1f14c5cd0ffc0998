// Package notify raises desktop notifications for private messages.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/matt0x6f/ircsession/internal/logger"
)

const maxBody = 100

// Notifier shows an alert for a private message
type Notifier interface {
	Notify(server, from, text string)
}

// Desktop sends notifications through the OS notification service
type Desktop struct {
	send func(title, message string) error
}

func NewDesktop() *Desktop {
	return &Desktop{send: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

// Notify is best-effort; failures are only logged
func (d *Desktop) Notify(server, from, text string) {
	title := fmt.Sprintf("%s - %s", from, server)
	if err := d.send(title, truncate(text)); err != nil {
		logger.Log.Debug().Err(err).Str("from", from).Msg("Failed to send desktop notification")
	}
}

// Nop discards notifications
type Nop struct{}

func (Nop) Notify(string, string, string) {}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxBody {
		return s
	}
	return string(r[:maxBody-3]) + "..."
}
