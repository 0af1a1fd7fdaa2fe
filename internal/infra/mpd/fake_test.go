package mpd_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeMPD speaks enough of the MPD protocol for the control point.
type fakeMPD struct {
	mu        sync.Mutex
	status    map[string]string
	song      map[string]string
	playlists []string
	contents  map[string][]string
	queue     []string
	commands  []string
	fail      map[string]bool
}

func startFakeMPD(t *testing.T) (*fakeMPD, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	f := &fakeMPD{
		status:   map[string]string{"state": "stop", "volume": "50", "random": "0", "repeat": "0"},
		song:     map[string]string{},
		contents: map[string][]string{},
		fail:     map[string]bool{},
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	return f, "127.0.0.1", ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func (f *fakeMPD) addPlaylist(name string, files ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists = append(f.playlists, name)
	f.contents[name] = files
}

func (f *fakeMPD) issued(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeMPD) serve(conn net.Conn) {
	defer conn.Close()
	io.WriteString(conn, "OK MPD 0.23.5\n")
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd, args := splitCommand(strings.TrimRight(line, "\n"))
		if cmd == "close" {
			return
		}
		io.WriteString(conn, f.handle(cmd, args))
	}
}

func (f *fakeMPD) handle(cmd string, args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cmd != "ping" {
		f.commands = append(f.commands, strings.TrimSpace(cmd+" "+strings.Join(args, " ")))
	}
	if f.fail[cmd] {
		return fmt.Sprintf("ACK [50@0] {%s} failure\n", cmd)
	}

	var b strings.Builder
	switch cmd {
	case "ping", "password", "pause":
	case "status":
		for k, v := range f.status {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
		fmt.Fprintf(&b, "playlistlength: %d\n", len(f.queue))
	case "currentsong":
		for k, v := range f.song {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	case "play":
		if len(args) == 1 {
			n, _ := strconv.Atoi(args[0])
			if n >= len(f.queue) {
				return "ACK [2@0] {play} Bad song index\n"
			}
		}
		f.status["state"] = "play"
	case "random", "repeat":
		f.status[cmd] = args[0]
	case "crossfade":
		f.status["xfade"] = args[0]
	case "setvol":
		f.status["volume"] = args[0]
	case "clear":
		f.queue = nil
	case "add":
		f.queue = append(f.queue, args[0])
	case "load":
		files, ok := f.contents[args[0]]
		if !ok {
			return "ACK [50@0] {load} No such playlist\n"
		}
		f.queue = append(f.queue, files...)
	case "save":
		f.playlists = append(f.playlists, args[0])
		f.contents[args[0]] = append([]string(nil), f.queue...)
	case "listplaylists":
		for _, name := range f.playlists {
			fmt.Fprintf(&b, "playlist: %s\nLast-Modified: 2024-05-01T10:00:00Z\n", name)
		}
	case "listplaylistinfo":
		files, ok := f.contents[args[0]]
		if !ok {
			return "ACK [50@0] {listplaylistinfo} No such playlist\n"
		}
		for i, file := range files {
			fmt.Fprintf(&b, "file: %s\nTitle: Track %d\nArtist: Band\n", file, i+1)
		}
	default:
		return fmt.Sprintf("ACK [5@0] {%s} unknown command\n", cmd)
	}
	b.WriteString("OK\n")
	return b.String()
}

// splitCommand splits a protocol line into the command and its arguments,
// unquoting double-quoted arguments.
func splitCommand(line string) (string, []string) {
	var fields []string
	var cur strings.Builder
	inQuote, escaped, started := false, false, false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case r == ' ' && !inQuote:
			if started {
				fields = append(fields, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		fields = append(fields, cur.String())
	}
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
