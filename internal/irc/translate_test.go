package irc

import (
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt0x6f/ircsession/internal/model"
)

func feed(t *testing.T, tr *translator, self string, lines ...string) []Event {
	t.Helper()
	var out []Event
	for _, line := range lines {
		msg, err := ircmsg.ParseLine(line)
		require.NoError(t, err, line)
		out = append(out, tr.translate(msg, self)...)
	}
	return out
}

func TestTranslatePrivmsg(t *testing.T) {
	tr := newTranslator()

	evs := feed(t, tr, "me", ":alice!a@host PRIVMSG #go :hello there")
	require.Len(t, evs, 1)
	assert.Equal(t, Event{Kind: KindMessage, Nick: "alice", Target: "#go", Text: "hello there"}, evs[0])

	evs = feed(t, tr, "me", ":alice!a@host PRIVMSG me :\x01ACTION waves\x01")
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Action)
	assert.Equal(t, "waves", evs[0].Text)

	assert.Empty(t, feed(t, tr, "me", ":alice!a@host PRIVMSG me :\x01VERSION\x01"))
	assert.Empty(t, feed(t, tr, "me", ":me!m@host PRIVMSG me :echo"))
}

func TestTranslateMembership(t *testing.T) {
	tr := newTranslator()
	evs := feed(t, tr, "me",
		":bob!b@host JOIN #go",
		":bob!b@host PART #go :later",
		":op!o@host KICK #go mallory :spamming",
		":carol!c@host QUIT :Ping timeout",
		":dave!d@host NICK dan",
	)
	require.Len(t, evs, 5)

	assert.Equal(t, KindJoin, evs[0].Kind)
	assert.Equal(t, "#go", evs[0].Channel)
	assert.Equal(t, "bob", evs[0].Nick)

	assert.Equal(t, KindPart, evs[1].Kind)
	assert.Equal(t, "later", evs[1].Text)

	assert.Equal(t, Event{Kind: KindKick, Nick: "mallory", By: "op", Channel: "#go", Text: "spamming"}, evs[2])

	assert.Equal(t, KindQuit, evs[3].Kind)
	assert.Equal(t, "Ping timeout", evs[3].Text)

	assert.Equal(t, Event{Kind: KindNick, Nick: "dave", NewNick: "dan"}, evs[4])
}

func TestTranslateNamesBatches(t *testing.T) {
	tr := newTranslator()

	evs := feed(t, tr, "me",
		":srv 353 me = #go :@alice +bob",
		":srv 353 me = #go :carol",
	)
	assert.Empty(t, evs)

	evs = feed(t, tr, "me", ":srv 366 me #go :End of /NAMES list.")
	require.Len(t, evs, 1)
	assert.Equal(t, KindNames, evs[0].Kind)
	assert.Equal(t, "#go", evs[0].Channel)
	assert.Equal(t, []string{"@alice", "+bob", "carol"}, evs[0].Names)

	// the batch is reset once delivered
	evs = feed(t, tr, "me", ":srv 366 me #go :End of /NAMES list.")
	require.Len(t, evs, 1)
	assert.Empty(t, evs[0].Names)

	assert.Empty(t, feed(t, tr, "me", ":srv 366 me * :End of /NAMES list."))
}

func TestTranslateChannelList(t *testing.T) {
	tr := newTranslator()
	evs := feed(t, tr, "me",
		":srv 321 me Channel :Users  Name",
		":srv 322 me #go 42 :The Go language",
		":srv 323 me :End of /LIST",
	)
	require.Len(t, evs, 2)
	assert.Equal(t, KindChannelListRow, evs[0].Kind)
	assert.Equal(t, []model.DirectoryEntry{{Name: "#go", Users: 42, Topic: "The Go language"}}, evs[0].Entries)
	assert.Equal(t, KindChannelListEnd, evs[1].Kind)
}

func TestTranslateTopicAndErrors(t *testing.T) {
	tr := newTranslator()
	evs := feed(t, tr, "me",
		":srv 332 me #go :Welcome",
		":alice!a@host TOPIC #go :",
		":srv 482 me #go :You're not a channel operator",
		":srv 900 me me!m@host me :You are now logged in as me",
	)
	require.Len(t, evs, 4)
	assert.Equal(t, Event{Kind: KindTopic, Channel: "#go", Text: "Welcome"}, evs[0])
	assert.Equal(t, Event{Kind: KindTopic, Channel: "#go"}, evs[1])
	assert.Equal(t, Event{Kind: KindError, Channel: "#go", Text: "#go: You're not a channel operator"}, evs[2])
	assert.Equal(t, KindAuthenticated, evs[3].Kind)
}

func TestTranslateNotice(t *testing.T) {
	tr := newTranslator()
	evs := feed(t, tr, "me",
		":NickServ!s@services NOTICE me :This nickname is registered",
		":alice!a@host NOTICE me :\x01VERSION hexchat\x01",
		":alice!a@host NOTICE #go :heads up",
	)
	require.Len(t, evs, 3)
	assert.Equal(t, "This nickname is registered", evs[0].Text)
	assert.Empty(t, evs[0].Channel)
	assert.Equal(t, "CTCP VERSION reply from alice: hexchat", evs[1].Text)
	assert.Equal(t, "#go", evs[2].Channel)
}
