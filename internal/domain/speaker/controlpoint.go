package speaker

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned by control points that cannot perform an operation,
// for example party mode on a single-output player.
var ErrUnsupported = errors.New("operation not supported by this control point")

// ControlPoint discovers zones and hands out per-zone speaker handles.
type ControlPoint interface {
	// Discover returns the current topology. iface optionally pins the
	// local interface address used for discovery. An empty topology is not an error.
	Discover(ctx context.Context, iface string) (*Topology, error)

	// Speaker returns a handle for commanding z.
	Speaker(z Zone) Speaker
}

// Speaker is the per-zone command surface. Queue and playlist operations are
// only meaningful on a group coordinator.
type Speaker interface {
	PlayMode(ctx context.Context) (PlayMode, error)
	SetPlayMode(ctx context.Context, mode PlayMode) error
	CrossFade(ctx context.Context) (bool, error)
	SetCrossFade(ctx context.Context, on bool) error
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, volume int) error

	TransportState(ctx context.Context) (string, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	CurrentTrack(ctx context.Context) (TrackInfo, error)

	// ClearQueue empties the queue. An already-empty queue is not an error.
	ClearQueue(ctx context.Context) error
	AddToQueue(ctx context.Context, pl Playlist) error
	AddURIToQueue(ctx context.Context, uri string) error
	QueueSize(ctx context.Context) (int, error)
	PlayFromQueue(ctx context.Context, index int) error

	Playlists(ctx context.Context) ([]Playlist, error)
	// Browse returns up to count tracks of pl starting at start.
	// An empty result marks the end of the playlist.
	Browse(ctx context.Context, pl Playlist, start, count int) ([]Track, error)
	CreatePlaylistFromQueue(ctx context.Context, title string) error

	EnablePartyMode(ctx context.Context) error
	LeaveGroup(ctx context.Context) error
}

// DeviceError reports a failed call to a speaker.
type DeviceError struct {
	Op   string
	Zone string
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Zone == "" {
		return fmt.Sprintf("cannot communicate with the speaker: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cannot communicate with speaker %s: %s: %v", e.Zone, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// WrapDeviceError wraps err in a DeviceError unless it is nil or already one.
func WrapDeviceError(op, zone string, err error) error {
	if err == nil {
		return nil
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	return &DeviceError{Op: op, Zone: zone, Err: err}
}

// IsDeviceError reports whether err came from a failed speaker call.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
