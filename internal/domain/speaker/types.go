// Package speaker defines the speaker domain model and the capability surface
// a control point (Sonos, MPD) must provide to the playlist tooling.
package speaker

// PlayMode is the device-level shuffle/repeat mode.
type PlayMode string

// Play modes understood by the control points.
const (
	PlayModeNormal          PlayMode = "NORMAL"
	PlayModeRepeatAll       PlayMode = "REPEAT_ALL"
	PlayModeShuffle         PlayMode = "SHUFFLE"
	PlayModeShuffleNoRepeat PlayMode = "SHUFFLE_NOREPEAT"
)

// Valid reports whether m is one of the four known play modes.
func (m PlayMode) Valid() bool {
	switch m {
	case PlayModeNormal, PlayModeRepeatAll, PlayModeShuffle, PlayModeShuffleNoRepeat:
		return true
	}
	return false
}

// Transport states reported by TransportState.
const (
	StatePlaying = "PLAYING"
	StatePaused  = "PAUSED_PLAYBACK"
	StateStopped = "STOPPED"
)

// Playlist is a named playlist stored on a coordinator.
// Titles are not guaranteed unique; lookups take the first match.
type Playlist struct {
	ID    string
	Title string
	URI   string
}

// Track is a single playlist entry. Empty strings mean the field is absent.
type Track struct {
	Title     string
	Creator   string
	Album     string
	Resources []string
}

// Location returns the first resource URI, or "" when the track has none.
func (t Track) Location() string {
	if len(t.Resources) == 0 {
		return ""
	}
	return t.Resources[0]
}

// TrackInfo describes what a speaker is currently playing. Either field may be blank.
type TrackInfo struct {
	Artist string
	Title  string
}

// FindPlaylist returns the first playlist whose title equals title exactly.
func FindPlaylist(playlists []Playlist, title string) (Playlist, bool) {
	for _, pl := range playlists {
		if pl.Title == title {
			return pl, true
		}
	}
	return Playlist{}, false
}
