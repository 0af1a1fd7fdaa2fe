// Package mpd implements the speaker control point for a Music Player Daemon.
package mpd

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Ping before Connect succeeded.
var ErrNotConnected = errors.New("not connected")

// Client wraps the MPD client with reconnection logic.
type Client struct {
	mu       sync.RWMutex
	client   *mpd.Client
	host     string
	port     int
	password string
}

// NewClient creates a new MPD client wrapper.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		password: password,
	}
}

// Addr returns host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Connect establishes connection to MPD.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

// connectLocked establishes connection (must hold lock).
func (c *Client) connectLocked() error {
	addr := c.Addr()
	log.Debug().Str("addr", addr).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	if c.password != "" {
		if err := client.Command("password %s", c.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	c.client = client
	return nil
}

// ensureConnected checks connection and reconnects if needed.
func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return c.connectLocked()
	}

	if err := c.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		c.client.Close()
		c.client = nil
		return c.connectLocked()
	}

	return nil
}

// Close closes the MPD connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// Ping checks if the connection is alive.
func (c *Client) Ping() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return ErrNotConnected
	}
	return c.client.Ping()
}

// do runs fn on a live connection.
func (c *Client) do(fn func(*mpd.Client) error) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return fn(c.client)
}

// Status returns the current MPD status.
func (c *Client) Status() (mpd.Attrs, error) {
	var attrs mpd.Attrs
	err := c.do(func(m *mpd.Client) (err error) {
		attrs, err = m.Status()
		return err
	})
	return attrs, err
}

// CurrentSong returns the currently playing song.
func (c *Client) CurrentSong() (mpd.Attrs, error) {
	var attrs mpd.Attrs
	err := c.do(func(m *mpd.Client) (err error) {
		attrs, err = m.CurrentSong()
		return err
	})
	return attrs, err
}

// Play starts playback. If pos is -1, resumes current track.
func (c *Client) Play(pos int) error {
	return c.do(func(m *mpd.Client) error {
		if pos < 0 {
			return m.Play(-1)
		}
		return m.Play(pos)
	})
}

// Pause sets the pause state.
func (c *Client) Pause(pause bool) error {
	return c.do(func(m *mpd.Client) error {
		return m.Pause(pause)
	})
}

// SetVolume sets the volume (0-100).
func (c *Client) SetVolume(vol int) error {
	return c.do(func(m *mpd.Client) error {
		return m.SetVolume(vol)
	})
}

// SetRandom sets random/shuffle mode.
func (c *Client) SetRandom(on bool) error {
	return c.do(func(m *mpd.Client) error {
		return m.Random(on)
	})
}

// SetRepeat sets repeat mode.
func (c *Client) SetRepeat(on bool) error {
	return c.do(func(m *mpd.Client) error {
		return m.Repeat(on)
	})
}

// SetCrossfade sets the cross-fade duration in seconds; 0 turns it off.
func (c *Client) SetCrossfade(seconds int) error {
	return c.do(func(m *mpd.Client) error {
		return m.Command("crossfade %d", seconds).OK()
	})
}

// Clear clears the current queue.
func (c *Client) Clear() error {
	return c.do(func(m *mpd.Client) error {
		return m.Clear()
	})
}

// Add adds a URI to the queue.
func (c *Client) Add(uri string) error {
	return c.do(func(m *mpd.Client) error {
		return m.Add(uri)
	})
}

// ListPlaylists returns the stored playlists.
func (c *Client) ListPlaylists() ([]mpd.Attrs, error) {
	var list []mpd.Attrs
	err := c.do(func(m *mpd.Client) (err error) {
		list, err = m.ListPlaylists()
		return err
	})
	return list, err
}

// PlaylistContents returns the songs of a stored playlist.
func (c *Client) PlaylistContents(name string) ([]mpd.Attrs, error) {
	var songs []mpd.Attrs
	err := c.do(func(m *mpd.Client) (err error) {
		songs, err = m.PlaylistContents(name)
		return err
	})
	return songs, err
}

// PlaylistLoad appends a stored playlist to the queue.
func (c *Client) PlaylistLoad(name string) error {
	return c.do(func(m *mpd.Client) error {
		return m.PlaylistLoad(name, -1, -1)
	})
}

// PlaylistSave saves the queue as a stored playlist.
func (c *Client) PlaylistSave(name string) error {
	return c.do(func(m *mpd.Client) error {
		return m.PlaylistSave(name)
	})
}
