package irc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matt0x6f/ircsession/internal/model"
)

// translator turns raw protocol lines into Events. It keeps the little
// state needed to batch multi-line replies (NAMES) into one event.
type translator struct {
	mu    sync.Mutex
	names map[string][]string
}

func newTranslator() *translator {
	return &translator{names: make(map[string][]string)}
}

// ctcp splits a CTCP payload wrapped in \x01 delimiters
func ctcp(text string) (command, args string, ok bool) {
	if len(text) < 2 || text[0] != '\x01' || text[len(text)-1] != '\x01' {
		return "", "", false
	}
	body := text[1 : len(text)-1]
	command, args, _ = strings.Cut(body, " ")
	return strings.ToUpper(command), args, true
}

func param(e ircmsg.Message, i int) string {
	if i < len(e.Params) {
		return e.Params[i]
	}
	return ""
}

func last(e ircmsg.Message) string {
	if len(e.Params) == 0 {
		return ""
	}
	return e.Params[len(e.Params)-1]
}

// translate maps one inbound line to zero or more events. self is the
// connection's current nickname.
func (t *translator) translate(e ircmsg.Message, self string) []Event {
	switch e.Command {
	case "PRIVMSG":
		if len(e.Params) < 2 {
			return nil
		}
		target, text, nick := e.Params[0], e.Params[1], e.Nick()
		if cmd, args, ok := ctcp(text); ok {
			if cmd != "ACTION" {
				return nil
			}
			return []Event{{Kind: KindMessage, Nick: nick, Target: target, Text: args, Action: true}}
		}
		// Some servers echo our own private messages back
		if strings.EqualFold(nick, self) && strings.EqualFold(target, self) {
			return nil
		}
		return []Event{{Kind: KindMessage, Nick: nick, Target: target, Text: text}}

	case "NOTICE":
		if len(e.Params) < 2 {
			return nil
		}
		target, text, nick := e.Params[0], e.Params[1], e.Nick()
		if cmd, args, ok := ctcp(text); ok {
			return []Event{{Kind: KindNotice, Text: fmt.Sprintf("CTCP %s reply from %s: %s", cmd, nick, args)}}
		}
		ev := Event{Kind: KindNotice, Nick: nick, Text: text}
		if model.IsGroupChannel(target) {
			ev.Channel = target
		}
		return []Event{ev}

	case "JOIN":
		if len(e.Params) < 1 {
			return nil
		}
		return []Event{{Kind: KindJoin, Nick: e.Nick(), Channel: e.Params[0]}}

	case "PART":
		if len(e.Params) < 1 {
			return nil
		}
		return []Event{{Kind: KindPart, Nick: e.Nick(), Channel: e.Params[0], Text: param(e, 1)}}

	case "KICK":
		if len(e.Params) < 2 {
			return nil
		}
		return []Event{{Kind: KindKick, Nick: e.Params[1], By: e.Nick(), Channel: e.Params[0], Text: param(e, 2)}}

	case "QUIT":
		return []Event{{Kind: KindQuit, Nick: e.Nick(), Text: param(e, 0)}}

	case "NICK":
		if len(e.Params) < 1 {
			return nil
		}
		return []Event{{Kind: KindNick, Nick: e.Nick(), NewNick: e.Params[0]}}

	case "TOPIC":
		if len(e.Params) < 1 {
			return nil
		}
		return []Event{{Kind: KindTopic, Channel: e.Params[0], Text: param(e, 1)}}

	case "331": // RPL_NOTOPIC
		return []Event{{Kind: KindTopic, Channel: param(e, 1)}}

	case "332": // RPL_TOPIC
		if len(e.Params) < 3 {
			return nil
		}
		return []Event{{Kind: KindTopic, Channel: e.Params[1], Text: e.Params[2]}}

	case "353": // RPL_NAMREPLY
		if len(e.Params) < 4 {
			return nil
		}
		channel := e.Params[2]
		t.mu.Lock()
		t.names[channel] = append(t.names[channel], strings.Fields(e.Params[3])...)
		t.mu.Unlock()
		return nil

	case "366": // RPL_ENDOFNAMES
		channel := param(e, 1)
		t.mu.Lock()
		names, ok := t.names[channel]
		delete(t.names, channel)
		t.mu.Unlock()
		if !ok && !model.IsGroupChannel(channel) {
			// "NAMES *" ends with a bare marker and no rows
			return nil
		}
		return []Event{{Kind: KindNames, Channel: channel, Names: names}}

	case "321": // RPL_LISTSTART
		return nil

	case "322": // RPL_LIST
		if len(e.Params) < 3 {
			return nil
		}
		users, _ := strconv.Atoi(e.Params[2])
		return []Event{{Kind: KindChannelListRow, Entries: []model.DirectoryEntry{{
			Name:  e.Params[1],
			Users: users,
			Topic: param(e, 3),
		}}}}

	case "323": // RPL_LISTEND
		return []Event{{Kind: KindChannelListEnd}}

	case "900": // RPL_LOGGEDIN
		return []Event{{Kind: KindAuthenticated, Text: last(e)}}

	case "311": // RPL_WHOISUSER
		if len(e.Params) < 6 {
			return nil
		}
		return []Event{{Kind: KindNotice, Text: fmt.Sprintf("%s is %s@%s (%s)", e.Params[1], e.Params[2], e.Params[3], e.Params[5])}}

	case "312": // RPL_WHOISSERVER
		if len(e.Params) < 3 {
			return nil
		}
		return []Event{{Kind: KindNotice, Text: fmt.Sprintf("%s is connected to %s", e.Params[1], e.Params[2])}}

	case "319": // RPL_WHOISCHANNELS
		if len(e.Params) < 3 {
			return nil
		}
		return []Event{{Kind: KindNotice, Text: fmt.Sprintf("%s is on %s", e.Params[1], strings.TrimSpace(e.Params[2]))}}

	case "401", "403", "404", "442", "481", "482", "904":
		ev := Event{Kind: KindError, Text: last(e)}
		if len(e.Params) >= 3 {
			subject := e.Params[1]
			ev.Text = subject + ": " + ev.Text
			if model.IsGroupChannel(subject) {
				ev.Channel = subject
			}
		}
		return []Event{ev}
	}
	return nil
}
