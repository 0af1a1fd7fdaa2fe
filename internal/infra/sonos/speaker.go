package sonos

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/huin/goupnp/soap"
	"github.com/rs/zerolog/log"
)

const (
	nsAVTransport       = "urn:schemas-upnp-org:service:AVTransport:1"
	nsRenderingControl  = "urn:schemas-upnp-org:service:RenderingControl:1"
	nsContentDirectory  = "urn:schemas-upnp-org:service:ContentDirectory:1"
	nsZoneGroupTopology = "urn:schemas-upnp-org:service:ZoneGroupTopology:1"

	pathAVTransport       = "/MediaRenderer/AVTransport/Control"
	pathRenderingControl  = "/MediaRenderer/RenderingControl/Control"
	pathContentDirectory  = "/MediaServer/ContentDirectory/Control"
	pathZoneGroupTopology = "/ZoneGroupTopology/Control"
)

// callTimeout bounds a single SOAP action.
const callTimeout = 10 * time.Second

// browsePageSize is the page size used when listing all playlists.
const browsePageSize = 100

func newSOAPClient(host, path string) *soap.SOAPClient {
	return soap.NewSOAPClient(url.URL{Scheme: "http", Host: host, Path: path})
}

// Speaker commands one Sonos zone.
type Speaker struct {
	cp   *ControlPoint
	zone speaker.Zone
}

var _ speaker.Speaker = (*Speaker)(nil)

type instance struct {
	InstanceID string
}

func (s *Speaker) call(ctx context.Context, ns, path, action string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	client := newSOAPClient(s.cp.hostFor(s.zone), path)
	if err := client.PerformActionCtx(ctx, ns, action, in, out); err != nil {
		return speaker.WrapDeviceError(action, s.zone.Name, err)
	}
	return nil
}

func (s *Speaker) transport(ctx context.Context, action string, in, out any) error {
	return s.call(ctx, nsAVTransport, pathAVTransport, action, in, out)
}

func (s *Speaker) PlayMode(ctx context.Context) (speaker.PlayMode, error) {
	var out struct {
		PlayMode       string
		RecQualityMode string
	}
	if err := s.transport(ctx, "GetTransportSettings", &instance{"0"}, &out); err != nil {
		return "", err
	}
	return speaker.PlayMode(out.PlayMode), nil
}

func (s *Speaker) SetPlayMode(ctx context.Context, mode speaker.PlayMode) error {
	in := struct {
		InstanceID  string
		NewPlayMode string
	}{"0", string(mode)}
	return s.transport(ctx, "SetPlayMode", &in, nil)
}

func (s *Speaker) CrossFade(ctx context.Context) (bool, error) {
	var out struct {
		CrossfadeMode string
	}
	if err := s.transport(ctx, "GetCrossfadeMode", &instance{"0"}, &out); err != nil {
		return false, err
	}
	return out.CrossfadeMode == "1", nil
}

func (s *Speaker) SetCrossFade(ctx context.Context, on bool) error {
	mode := "0"
	if on {
		mode = "1"
	}
	in := struct {
		InstanceID    string
		CrossfadeMode string
	}{"0", mode}
	return s.transport(ctx, "SetCrossfadeMode", &in, nil)
}

func (s *Speaker) Volume(ctx context.Context) (int, error) {
	in := struct {
		InstanceID string
		Channel    string
	}{"0", "Master"}
	var out struct {
		CurrentVolume string
	}
	if err := s.call(ctx, nsRenderingControl, pathRenderingControl, "GetVolume", &in, &out); err != nil {
		return 0, err
	}
	vol, err := strconv.Atoi(out.CurrentVolume)
	if err != nil {
		return 0, speaker.WrapDeviceError("GetVolume", s.zone.Name, err)
	}
	return vol, nil
}

func (s *Speaker) SetVolume(ctx context.Context, volume int) error {
	in := struct {
		InstanceID    string
		Channel       string
		DesiredVolume string
	}{"0", "Master", strconv.Itoa(volume)}
	return s.call(ctx, nsRenderingControl, pathRenderingControl, "SetVolume", &in, nil)
}

func (s *Speaker) TransportState(ctx context.Context) (string, error) {
	var out struct {
		CurrentTransportState  string
		CurrentTransportStatus string
		CurrentSpeed           string
	}
	if err := s.transport(ctx, "GetTransportInfo", &instance{"0"}, &out); err != nil {
		return "", err
	}
	return out.CurrentTransportState, nil
}

func (s *Speaker) Play(ctx context.Context) error {
	in := struct {
		InstanceID string
		Speed      string
	}{"0", "1"}
	return s.transport(ctx, "Play", &in, nil)
}

func (s *Speaker) Pause(ctx context.Context) error {
	return s.transport(ctx, "Pause", &instance{"0"}, nil)
}

func (s *Speaker) CurrentTrack(ctx context.Context) (speaker.TrackInfo, error) {
	var out struct {
		Track         string
		TrackDuration string
		TrackMetaData string
		TrackURI      string
		RelTime       string
	}
	if err := s.transport(ctx, "GetPositionInfo", &instance{"0"}, &out); err != nil {
		return speaker.TrackInfo{}, err
	}
	if out.TrackMetaData == "" || out.TrackMetaData == "NOT_IMPLEMENTED" {
		return speaker.TrackInfo{}, nil
	}

	objects, err := parseDIDL(out.TrackMetaData)
	if err != nil || len(objects) == 0 {
		log.Debug().Err(err).Str("zone", s.zone.Name).Msg("Unreadable track metadata")
		return speaker.TrackInfo{}, nil
	}
	return speaker.TrackInfo{Artist: objects[0].Creator, Title: objects[0].Title}, nil
}

// ClearQueue empties the queue. Players reject RemoveAllTracksFromQueue on
// an empty queue, so that case is a no-op.
func (s *Speaker) ClearQueue(ctx context.Context) error {
	n, err := s.QueueSize(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return s.transport(ctx, "RemoveAllTracksFromQueue", &instance{"0"}, nil)
}

func (s *Speaker) enqueue(ctx context.Context, uri, metadata string) error {
	in := struct {
		InstanceID                      string
		EnqueuedURI                     string
		EnqueuedURIMetaData             string
		DesiredFirstTrackNumberEnqueued string
		EnqueueAsNext                   string
	}{"0", uri, metadata, "0", "0"}
	var out struct {
		FirstTrackNumberEnqueued string
		NumTracksAdded           string
		NewQueueLength           string
	}
	return s.transport(ctx, "AddURIToQueue", &in, &out)
}

func (s *Speaker) AddToQueue(ctx context.Context, pl speaker.Playlist) error {
	return s.enqueue(ctx, playlistURI(pl), playlistMetadata(pl))
}

func (s *Speaker) AddURIToQueue(ctx context.Context, uri string) error {
	return s.enqueue(ctx, uri, "")
}

type browseResult struct {
	Result         string
	NumberReturned string
	TotalMatches   string
	UpdateID       string
}

func (s *Speaker) browse(ctx context.Context, objectID, filter string, start, count int) (browseResult, error) {
	in := struct {
		ObjectID       string
		BrowseFlag     string
		Filter         string
		StartingIndex  string
		RequestedCount string
		SortCriteria   string
	}{objectID, "BrowseDirectChildren", filter, strconv.Itoa(start), strconv.Itoa(count), ""}
	var out browseResult
	err := s.call(ctx, nsContentDirectory, pathContentDirectory, "Browse", &in, &out)
	return out, err
}

func (s *Speaker) QueueSize(ctx context.Context) (int, error) {
	res, err := s.browse(ctx, "Q:0", "dc:title", 0, 1)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(res.TotalMatches)
	if err != nil {
		return 0, speaker.WrapDeviceError("Browse", s.zone.Name, err)
	}
	return n, nil
}

func (s *Speaker) PlayFromQueue(ctx context.Context, index int) error {
	if index < 0 {
		return speaker.WrapDeviceError("Seek", s.zone.Name, errors.New("negative queue index"))
	}
	in := struct {
		InstanceID         string
		CurrentURI         string
		CurrentURIMetaData string
	}{"0", "x-rincon-queue:" + s.zone.ID + "#0", ""}
	if err := s.transport(ctx, "SetAVTransportURI", &in, nil); err != nil {
		return err
	}

	seek := struct {
		InstanceID string
		Unit       string
		Target     string
	}{"0", "TRACK_NR", strconv.Itoa(index + 1)}
	if err := s.transport(ctx, "Seek", &seek, nil); err != nil {
		return err
	}
	return s.Play(ctx)
}

func (s *Speaker) Playlists(ctx context.Context) ([]speaker.Playlist, error) {
	var playlists []speaker.Playlist
	for start := 0; ; {
		res, err := s.browse(ctx, "SQ:", "*", start, browsePageSize)
		if err != nil {
			return nil, err
		}
		objects, err := parseDIDL(res.Result)
		if err != nil {
			return nil, speaker.WrapDeviceError("Browse", s.zone.Name, err)
		}
		for _, o := range objects {
			playlists = append(playlists, o.playlist())
		}

		start += len(objects)
		total, err := strconv.Atoi(res.TotalMatches)
		if err != nil {
			return nil, speaker.WrapDeviceError("Browse", s.zone.Name, err)
		}
		if len(objects) == 0 || start >= total {
			return playlists, nil
		}
	}
}

func (s *Speaker) Browse(ctx context.Context, pl speaker.Playlist, start, count int) ([]speaker.Track, error) {
	res, err := s.browse(ctx, pl.ID, "*", start, count)
	if err != nil {
		return nil, err
	}
	objects, err := parseDIDL(res.Result)
	if err != nil {
		return nil, speaker.WrapDeviceError("Browse", s.zone.Name, err)
	}
	tracks := make([]speaker.Track, 0, len(objects))
	for _, o := range objects {
		tracks = append(tracks, o.track())
	}
	return tracks, nil
}

func (s *Speaker) CreatePlaylistFromQueue(ctx context.Context, title string) error {
	in := struct {
		InstanceID string
		Title      string
		ObjectID   string
	}{"0", title, ""}
	var out struct {
		AssignedObjectID string
	}
	if err := s.transport(ctx, "SaveQueue", &in, &out); err != nil {
		return err
	}
	log.Debug().Str("playlist", title).Str("id", out.AssignedObjectID).Msg("Queue saved")
	return nil
}

// EnablePartyMode joins every other zone of the household to this one.
func (s *Speaker) EnablePartyMode(ctx context.Context) error {
	top := s.cp.topology()
	if top == nil {
		return speaker.WrapDeviceError("EnablePartyMode", s.zone.Name, errors.New("household topology not discovered"))
	}
	var errs []error
	for _, z := range top.Zones() {
		if z.ID == s.zone.ID {
			continue
		}
		member := &Speaker{cp: s.cp, zone: z}
		if err := member.join(ctx, s.zone.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Speaker) join(ctx context.Context, coordinatorID string) error {
	in := struct {
		InstanceID         string
		CurrentURI         string
		CurrentURIMetaData string
	}{"0", "x-rincon:" + coordinatorID, ""}
	return s.transport(ctx, "SetAVTransportURI", &in, nil)
}

func (s *Speaker) LeaveGroup(ctx context.Context) error {
	return s.transport(ctx, "BecomeCoordinatorOfStandaloneGroup", &instance{"0"}, nil)
}
