package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/matt0x6f/ircsession/internal/app"
	"github.com/matt0x6f/ircsession/internal/events"
	"github.com/matt0x6f/ircsession/internal/logger"
	"github.com/matt0x6f/ircsession/internal/model"
)

// console prints the projection as plain lines and feeds typed lines to
// the engine. A few client-side commands are handled here.
type console struct {
	engine *app.Engine
	mu     sync.Mutex
	out    io.Writer
}

func newConsole(engine *app.Engine, out io.Writer) *console {
	return &console{engine: engine, out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

// attach subscribes to the engine's projection updates
func (c *console) attach() {
	bus := c.engine.Bus()
	bus.Subscribe(events.EventUIMessages, events.SubscriberFunc(c.onMessage))
	bus.Subscribe(events.EventUIActive, events.SubscriberFunc(c.onActive))
}

func (c *console) onMessage(e events.Event) {
	if e.Message == nil {
		return
	}
	where := e.ServerName
	if e.ChannelID != "" {
		where += "/" + e.ChannelID
	}
	if e.Message.Type == model.MessageUser {
		c.printf("[%s] <%s> %s", where, e.Message.Author, e.Message.Text)
		return
	}
	c.printf("[%s] %s", where, e.Message.Text)
}

func (c *console) onActive(e events.Event) {
	if e.ServerID == "" {
		return
	}
	where := e.ServerName
	if e.ChannelID != "" {
		where += "/" + e.ChannelID
	}
	c.printf("-- now in %s", where)
}

// readLoop sends every line from r to the engine until r is exhausted,
// then calls stop
func (c *console) readLoop(r io.Reader, stop func()) {
	defer stop()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if c.local(line) {
			continue
		}
		if err := c.engine.Input(line); err != nil {
			if errors.Is(err, app.ErrStopped) {
				return
			}
			logger.Log.Error().Err(err).Msg("Failed to handle input")
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to read input")
	}
}

// local handles console commands that are not protocol commands. It
// reports whether line was consumed.
func (c *console) local(line string) bool {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/server":
		c.addServer(fields[1:])
	case "/servers":
		c.listServers()
	case "/switch":
		c.switchTo(fields[1:])
	case "/delete":
		c.deleteServer(fields[1:])
	case "/channels":
		c.listChannels()
	case "/users":
		c.listUsers()
	case "/directory":
		c.searchDirectory(strings.Join(fields[1:], " "))
	default:
		return false
	}
	return true
}

// addServer handles /server host [port] nick [tls]
func (c *console) addServer(args []string) {
	if len(args) < 2 {
		c.printf("Usage: /server host [port] nick [tls]")
		return
	}
	req := app.ConnectRequest{Host: args[0], Port: 6667}
	rest := args[1:]
	if port, err := strconv.Atoi(rest[0]); err == nil {
		req.Port = port
		rest = rest[1:]
	}
	if len(rest) == 0 {
		c.printf("Usage: /server host [port] nick [tls]")
		return
	}
	req.Nickname = rest[0]
	req.TLS = len(rest) > 1 && strings.EqualFold(rest[1], "tls")
	if _, err := c.engine.Connect(req); err != nil {
		c.printf("Error: %v", err)
	}
}

// serverAt resolves a 1-based index from /servers
func (c *console) serverAt(arg string) (string, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return "", false
	}
	var id string
	_ = c.engine.View(func(st *model.State) {
		servers := st.Servers()
		if n <= len(servers) {
			id = servers[n-1].ID
		}
	})
	return id, id != ""
}

func (c *console) listServers() {
	var lines []string
	_ = c.engine.View(func(st *model.State) {
		for i, srv := range st.Servers() {
			mark := " "
			if srv.ID == st.ActiveServerID {
				mark = "*"
			}
			lines = append(lines, fmt.Sprintf("%s %d. %s (%s) %s", mark, i+1, srv.Name, srv.Address(), srv.Status))
		}
	})
	if len(lines) == 0 {
		c.printf("No servers")
		return
	}
	for _, l := range lines {
		c.printf("%s", l)
	}
}

// switchTo handles /switch n [channel]
func (c *console) switchTo(args []string) {
	if len(args) == 0 {
		c.printf("Usage: /switch n [#channel]")
		return
	}
	id, ok := c.serverAt(args[0])
	if !ok {
		c.printf("No such server: %s", args[0])
		return
	}
	var err error
	if len(args) > 1 {
		err = c.engine.SelectChannel(id, args[1])
	} else {
		err = c.engine.SelectServer(id)
	}
	if err != nil {
		c.printf("Error: %v", err)
	}
}

func (c *console) deleteServer(args []string) {
	if len(args) == 0 {
		c.printf("Usage: /delete n")
		return
	}
	id, ok := c.serverAt(args[0])
	if !ok {
		c.printf("No such server: %s", args[0])
		return
	}
	if err := c.engine.DeleteServer(id); err != nil {
		c.printf("Error: %v", err)
	}
}

func (c *console) listChannels() {
	var lines []string
	_ = c.engine.View(func(st *model.State) {
		srv := st.ActiveServer()
		if srv == nil {
			return
		}
		for _, ch := range srv.Channels() {
			mark := " "
			if ch.ID == st.ActiveChannelID {
				mark = "*"
			}
			lines = append(lines, fmt.Sprintf("%s %s (%d users)", mark, ch.Name, ch.UserCount()))
		}
	})
	if len(lines) == 0 {
		c.printf("No channels")
		return
	}
	for _, l := range lines {
		c.printf("%s", l)
	}
}

func (c *console) listUsers() {
	var names []string
	_ = c.engine.View(func(st *model.State) {
		ch := st.ActiveChannel()
		if ch == nil {
			return
		}
		for _, u := range ch.SortedUsers() {
			names = append(names, u.Mode.Prefix()+u.Nick)
		}
	})
	if len(names) == 0 {
		c.printf("No users")
		return
	}
	c.printf("%s", strings.Join(names, " "))
}

func (c *console) searchDirectory(term string) {
	var lines []string
	_ = c.engine.View(func(st *model.State) {
		srv := st.ActiveServer()
		if srv == nil {
			return
		}
		for _, e := range srv.SearchDirectory(term) {
			lines = append(lines, fmt.Sprintf("%s (%d) %s", e.Name, e.Users, e.Topic))
		}
	})
	if len(lines) == 0 {
		c.printf("No channels listed")
		return
	}
	for _, l := range lines {
		c.printf("%s", l)
	}
}
