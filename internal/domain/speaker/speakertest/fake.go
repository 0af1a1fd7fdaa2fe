// Package speakertest provides an in-memory speaker for tests.
package speakertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/edumarques81/spl/internal/domain/speaker"
)

// Speaker is an in-memory speaker.Speaker. Calls are recorded in order and
// any operation can be made to fail through Errors, keyed by method name.
type Speaker struct {
	mu sync.Mutex

	Mode      speaker.PlayMode
	Fade      bool
	Vol       int
	State     string
	Track     speaker.TrackInfo
	Queue     []string
	Lists     []speaker.Playlist
	Contents  map[string][]speaker.Track
	Calls     []string
	Errors    map[string]error
	PartyMode bool
	Left      bool
}

// New returns a stopped speaker at volume 50 in NORMAL mode.
func New() *Speaker {
	return &Speaker{
		Mode:     speaker.PlayModeNormal,
		Vol:      50,
		State:    speaker.StateStopped,
		Contents: make(map[string][]speaker.Track),
		Errors:   make(map[string]error),
	}
}

// AddPlaylist registers a playlist with its tracks.
func (s *Speaker) AddPlaylist(title string, tracks ...speaker.Track) speaker.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl := speaker.Playlist{ID: fmt.Sprintf("SQ:%d", len(s.Lists)+1), Title: title}
	s.Lists = append(s.Lists, pl)
	s.Contents[pl.ID] = tracks
	return pl
}

// Called reports whether method was called at least once.
func (s *Speaker) Called(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.Calls {
		if c == method || strings.HasPrefix(c, method+"(") {
			return true
		}
	}
	return false
}

// QueueMutations counts calls that changed the queue.
func (s *Speaker) QueueMutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		for _, m := range []string{"ClearQueue", "AddURIToQueue", "AddToQueue", "CreatePlaylistFromQueue"} {
			if c == m || strings.HasPrefix(c, m+"(") {
				n++
			}
		}
	}
	return n
}

func (s *Speaker) record(call, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, call)
	return s.Errors[method]
}

func (s *Speaker) PlayMode(ctx context.Context) (speaker.PlayMode, error) {
	if err := s.record("PlayMode", "PlayMode"); err != nil {
		return "", err
	}
	return s.Mode, nil
}

func (s *Speaker) SetPlayMode(ctx context.Context, mode speaker.PlayMode) error {
	if err := s.record("SetPlayMode("+string(mode)+")", "SetPlayMode"); err != nil {
		return err
	}
	s.Mode = mode
	return nil
}

func (s *Speaker) CrossFade(ctx context.Context) (bool, error) {
	if err := s.record("CrossFade", "CrossFade"); err != nil {
		return false, err
	}
	return s.Fade, nil
}

func (s *Speaker) SetCrossFade(ctx context.Context, on bool) error {
	if err := s.record(fmt.Sprintf("SetCrossFade(%v)", on), "SetCrossFade"); err != nil {
		return err
	}
	s.Fade = on
	return nil
}

func (s *Speaker) Volume(ctx context.Context) (int, error) {
	if err := s.record("Volume", "Volume"); err != nil {
		return 0, err
	}
	return s.Vol, nil
}

func (s *Speaker) SetVolume(ctx context.Context, volume int) error {
	if err := s.record(fmt.Sprintf("SetVolume(%d)", volume), "SetVolume"); err != nil {
		return err
	}
	s.Vol = volume
	return nil
}

func (s *Speaker) TransportState(ctx context.Context) (string, error) {
	if err := s.record("TransportState", "TransportState"); err != nil {
		return "", err
	}
	return s.State, nil
}

func (s *Speaker) Play(ctx context.Context) error {
	if err := s.record("Play", "Play"); err != nil {
		return err
	}
	s.State = speaker.StatePlaying
	return nil
}

func (s *Speaker) Pause(ctx context.Context) error {
	if err := s.record("Pause", "Pause"); err != nil {
		return err
	}
	s.State = speaker.StatePaused
	return nil
}

func (s *Speaker) CurrentTrack(ctx context.Context) (speaker.TrackInfo, error) {
	if err := s.record("CurrentTrack", "CurrentTrack"); err != nil {
		return speaker.TrackInfo{}, err
	}
	return s.Track, nil
}

func (s *Speaker) ClearQueue(ctx context.Context) error {
	if err := s.record("ClearQueue", "ClearQueue"); err != nil {
		return err
	}
	s.Queue = nil
	return nil
}

func (s *Speaker) AddToQueue(ctx context.Context, pl speaker.Playlist) error {
	if err := s.record("AddToQueue("+pl.Title+")", "AddToQueue"); err != nil {
		return err
	}
	for _, t := range s.Contents[pl.ID] {
		s.Queue = append(s.Queue, t.Location())
	}
	return nil
}

func (s *Speaker) AddURIToQueue(ctx context.Context, uri string) error {
	if err := s.record("AddURIToQueue("+uri+")", "AddURIToQueue"); err != nil {
		return err
	}
	s.Queue = append(s.Queue, uri)
	return nil
}

func (s *Speaker) QueueSize(ctx context.Context) (int, error) {
	if err := s.record("QueueSize", "QueueSize"); err != nil {
		return 0, err
	}
	return len(s.Queue), nil
}

func (s *Speaker) PlayFromQueue(ctx context.Context, index int) error {
	if err := s.record(fmt.Sprintf("PlayFromQueue(%d)", index), "PlayFromQueue"); err != nil {
		return err
	}
	if index < 0 || index >= len(s.Queue) {
		return fmt.Errorf("queue index %d out of range", index)
	}
	s.State = speaker.StatePlaying
	return nil
}

func (s *Speaker) Playlists(ctx context.Context) ([]speaker.Playlist, error) {
	if err := s.record("Playlists", "Playlists"); err != nil {
		return nil, err
	}
	out := make([]speaker.Playlist, len(s.Lists))
	copy(out, s.Lists)
	return out, nil
}

func (s *Speaker) Browse(ctx context.Context, pl speaker.Playlist, start, count int) ([]speaker.Track, error) {
	if err := s.record(fmt.Sprintf("Browse(%s,%d,%d)", pl.Title, start, count), "Browse"); err != nil {
		return nil, err
	}
	tracks := s.Contents[pl.ID]
	if start >= len(tracks) {
		return nil, nil
	}
	end := start + count
	if end > len(tracks) {
		end = len(tracks)
	}
	return tracks[start:end], nil
}

func (s *Speaker) CreatePlaylistFromQueue(ctx context.Context, title string) error {
	if err := s.record("CreatePlaylistFromQueue("+title+")", "CreatePlaylistFromQueue"); err != nil {
		return err
	}
	tracks := make([]speaker.Track, 0, len(s.Queue))
	for _, uri := range s.Queue {
		tracks = append(tracks, speaker.Track{Resources: []string{uri}})
	}
	s.mu.Lock()
	pl := speaker.Playlist{ID: fmt.Sprintf("SQ:%d", len(s.Lists)+1), Title: title}
	s.Lists = append(s.Lists, pl)
	s.Contents[pl.ID] = tracks
	s.mu.Unlock()
	return nil
}

func (s *Speaker) EnablePartyMode(ctx context.Context) error {
	if err := s.record("EnablePartyMode", "EnablePartyMode"); err != nil {
		return err
	}
	s.PartyMode = true
	return nil
}

func (s *Speaker) LeaveGroup(ctx context.Context) error {
	if err := s.record("LeaveGroup", "LeaveGroup"); err != nil {
		return err
	}
	s.Left = true
	return nil
}

// ControlPoint is an in-memory speaker.ControlPoint over a fixed topology.
type ControlPoint struct {
	Topology    *speaker.Topology
	DiscoverErr error
	Speakers    map[string]*Speaker
	Interfaces  []string
}

// NewControlPoint returns a control point with a fake speaker per zone.
func NewControlPoint(top *speaker.Topology) *ControlPoint {
	cp := &ControlPoint{Topology: top, Speakers: make(map[string]*Speaker)}
	for _, z := range top.Zones() {
		cp.Speakers[z.ID] = New()
	}
	return cp
}

func (c *ControlPoint) Discover(ctx context.Context, iface string) (*speaker.Topology, error) {
	c.Interfaces = append(c.Interfaces, iface)
	if c.DiscoverErr != nil {
		return nil, c.DiscoverErr
	}
	return c.Topology, nil
}

func (c *ControlPoint) Speaker(z speaker.Zone) speaker.Speaker {
	s, ok := c.Speakers[z.ID]
	if !ok {
		s = New()
		c.Speakers[z.ID] = s
	}
	return s
}
