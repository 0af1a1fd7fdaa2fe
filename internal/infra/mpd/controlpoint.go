package mpd

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/edumarques81/spl/internal/domain/playmode"
	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// DefaultName is the zone name used when none is configured.
const DefaultName = "MPD"

// DefaultCrossfade is the cross-fade duration set when cross-fade is turned on.
const DefaultCrossfade = 5

const zoneID = "mpd"

// ControlPoint exposes one MPD instance as a single-zone household.
type ControlPoint struct {
	client    *Client
	name      string
	crossfade int

	mu       sync.Mutex
	contents map[string][]speaker.Track
}

// NewControlPoint creates a control point over client.
func NewControlPoint(client *Client, name string, crossfadeSeconds int) *ControlPoint {
	if name == "" {
		name = DefaultName
	}
	if crossfadeSeconds <= 0 {
		crossfadeSeconds = DefaultCrossfade
	}
	return &ControlPoint{
		client:    client,
		name:      name,
		crossfade: crossfadeSeconds,
		contents:  make(map[string][]speaker.Track),
	}
}

// Discover connects to MPD and returns its single zone. MPD has no
// multicast discovery, so iface is ignored.
func (c *ControlPoint) Discover(ctx context.Context, iface string) (*speaker.Topology, error) {
	if iface != "" {
		log.Warn().Str("interface", iface).Msg("Interface is ignored for MPD")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.client.ensureConnected(); err != nil {
		return nil, speaker.WrapDeviceError("connect", c.name, err)
	}

	zone := speaker.Zone{ID: zoneID, Address: c.client.Addr(), Name: c.name, GroupID: zoneID}
	group := speaker.Group{ID: zoneID, CoordinatorID: zoneID, MemberIDs: []string{zoneID}}
	return speaker.NewTopology([]speaker.Zone{zone}, []speaker.Group{group}), nil
}

// Speaker returns the handle for the MPD zone.
func (c *ControlPoint) Speaker(z speaker.Zone) speaker.Speaker {
	return &Speaker{cp: c, zone: z}
}

// Close closes the MPD connection.
func (c *ControlPoint) Close() error {
	return c.client.Close()
}

// playlistTracks returns the cached contents of a stored playlist.
func (c *ControlPoint) playlistTracks(name string) ([]speaker.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tracks, ok := c.contents[name]; ok {
		return tracks, nil
	}
	songs, err := c.client.PlaylistContents(name)
	if err != nil {
		return nil, err
	}
	tracks := make([]speaker.Track, 0, len(songs))
	for _, song := range songs {
		tracks = append(tracks, songTrack(song))
	}
	c.contents[name] = tracks
	return tracks, nil
}

func (c *ControlPoint) forget(name string) {
	c.mu.Lock()
	delete(c.contents, name)
	c.mu.Unlock()
}

func songTrack(song mpd.Attrs) speaker.Track {
	t := speaker.Track{
		Title:   song["Title"],
		Creator: song["Artist"],
		Album:   song["Album"],
	}
	if file := song["file"]; file != "" {
		t.Resources = []string{file}
	}
	return t
}

// Speaker commands the MPD zone.
type Speaker struct {
	cp   *ControlPoint
	zone speaker.Zone
}

var _ speaker.Speaker = (*Speaker)(nil)

func (s *Speaker) wrap(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return speaker.WrapDeviceError(op, s.zone.Name, fn())
}

func (s *Speaker) status(ctx context.Context) (mpd.Attrs, error) {
	var attrs mpd.Attrs
	err := s.wrap(ctx, "status", func() (err error) {
		attrs, err = s.cp.client.Status()
		return err
	})
	return attrs, err
}

func (s *Speaker) PlayMode(ctx context.Context) (speaker.PlayMode, error) {
	st, err := s.status(ctx)
	if err != nil {
		return "", err
	}
	return playmode.FromFlags(st["random"] == "1", st["repeat"] == "1"), nil
}

func (s *Speaker) SetPlayMode(ctx context.Context, mode speaker.PlayMode) error {
	return s.wrap(ctx, "random", func() error {
		if err := s.cp.client.SetRandom(playmode.Shuffles(mode)); err != nil {
			return err
		}
		return s.cp.client.SetRepeat(playmode.Repeats(mode))
	})
}

func (s *Speaker) CrossFade(ctx context.Context) (bool, error) {
	st, err := s.status(ctx)
	if err != nil {
		return false, err
	}
	secs, _ := strconv.Atoi(st["xfade"])
	return secs > 0, nil
}

func (s *Speaker) SetCrossFade(ctx context.Context, on bool) error {
	secs := 0
	if on {
		secs = s.cp.crossfade
	}
	return s.wrap(ctx, "crossfade", func() error {
		return s.cp.client.SetCrossfade(secs)
	})
}

func (s *Speaker) Volume(ctx context.Context) (int, error) {
	st, err := s.status(ctx)
	if err != nil {
		return 0, err
	}
	vol, err := strconv.Atoi(st["volume"])
	if err != nil || vol < 0 {
		return 0, speaker.WrapDeviceError("status", s.zone.Name, fmt.Errorf("volume control unavailable (volume %q)", st["volume"]))
	}
	return vol, nil
}

func (s *Speaker) SetVolume(ctx context.Context, volume int) error {
	return s.wrap(ctx, "setvol", func() error {
		return s.cp.client.SetVolume(volume)
	})
}

func (s *Speaker) TransportState(ctx context.Context) (string, error) {
	st, err := s.status(ctx)
	if err != nil {
		return "", err
	}
	switch st["state"] {
	case "play":
		return speaker.StatePlaying, nil
	case "pause":
		return speaker.StatePaused, nil
	default:
		return speaker.StateStopped, nil
	}
}

func (s *Speaker) Play(ctx context.Context) error {
	return s.wrap(ctx, "play", func() error {
		return s.cp.client.Play(-1)
	})
}

func (s *Speaker) Pause(ctx context.Context) error {
	return s.wrap(ctx, "pause", func() error {
		return s.cp.client.Pause(true)
	})
}

func (s *Speaker) CurrentTrack(ctx context.Context) (speaker.TrackInfo, error) {
	var song mpd.Attrs
	err := s.wrap(ctx, "currentsong", func() (err error) {
		song, err = s.cp.client.CurrentSong()
		return err
	})
	if err != nil {
		return speaker.TrackInfo{}, err
	}
	return speaker.TrackInfo{Artist: song["Artist"], Title: song["Title"]}, nil
}

func (s *Speaker) ClearQueue(ctx context.Context) error {
	return s.wrap(ctx, "clear", s.cp.client.Clear)
}

func (s *Speaker) AddToQueue(ctx context.Context, pl speaker.Playlist) error {
	return s.wrap(ctx, "load", func() error {
		return s.cp.client.PlaylistLoad(pl.ID)
	})
}

func (s *Speaker) AddURIToQueue(ctx context.Context, uri string) error {
	return s.wrap(ctx, "add", func() error {
		return s.cp.client.Add(uri)
	})
}

func (s *Speaker) QueueSize(ctx context.Context) (int, error) {
	st, err := s.status(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(st["playlistlength"])
	return n, nil
}

func (s *Speaker) PlayFromQueue(ctx context.Context, index int) error {
	return s.wrap(ctx, "play", func() error {
		return s.cp.client.Play(index)
	})
}

func (s *Speaker) Playlists(ctx context.Context) ([]speaker.Playlist, error) {
	var list []mpd.Attrs
	err := s.wrap(ctx, "listplaylists", func() (err error) {
		list, err = s.cp.client.ListPlaylists()
		return err
	})
	if err != nil {
		return nil, err
	}
	playlists := make([]speaker.Playlist, 0, len(list))
	for _, attrs := range list {
		name := attrs["playlist"]
		playlists = append(playlists, speaker.Playlist{ID: name, Title: name})
	}
	return playlists, nil
}

// Browse pages through a stored playlist. MPD returns whole playlists, so
// the contents are fetched once and served from memory afterwards.
func (s *Speaker) Browse(ctx context.Context, pl speaker.Playlist, start, count int) ([]speaker.Track, error) {
	var tracks []speaker.Track
	err := s.wrap(ctx, "listplaylistinfo", func() (err error) {
		tracks, err = s.cp.playlistTracks(pl.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if start >= len(tracks) || count <= 0 {
		return nil, nil
	}
	end := min(start+count, len(tracks))
	return tracks[start:end], nil
}

func (s *Speaker) CreatePlaylistFromQueue(ctx context.Context, title string) error {
	err := s.wrap(ctx, "save", func() error {
		return s.cp.client.PlaylistSave(title)
	})
	if err == nil {
		s.cp.forget(title)
	}
	return err
}

func (s *Speaker) EnablePartyMode(ctx context.Context) error {
	return speaker.WrapDeviceError("EnablePartyMode", s.zone.Name, speaker.ErrUnsupported)
}

func (s *Speaker) LeaveGroup(ctx context.Context) error {
	return speaker.WrapDeviceError("LeaveGroup", s.zone.Name, speaker.ErrUnsupported)
}
