// Package player provides the command service that drives a resolved speaker.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"

	"github.com/edumarques81/spl/internal/domain/playmode"
	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/edumarques81/spl/internal/domain/topology"
	"github.com/edumarques81/spl/internal/domain/xspf"
	"github.com/rs/zerolog/log"
)

var (
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrConflictingFlags = errors.New("can not have party mode on and off at the same time")
	ErrAlreadyParty     = errors.New("speakers are already in party mode")
	ErrNotConnected     = errors.New("no speaker selected")
)

// Service handles speaker commands for a single invocation.
type Service struct {
	cp   speaker.ControlPoint
	out  io.Writer
	intn func(n int) int

	top    *speaker.Topology
	target topology.Target
	spk    speaker.Speaker
}

// NewService creates a new player service. Listings are written to out.
func NewService(cp speaker.ControlPoint, out io.Writer) *Service {
	return &Service{
		cp:   cp,
		out:  out,
		intn: rand.IntN,
	}
}

// Connect discovers the speakers and resolves the command target.
func (s *Service) Connect(ctx context.Context, iface, selector string) (topology.Target, error) {
	top, err := s.cp.Discover(ctx, iface)
	if err != nil {
		return topology.Target{}, fmt.Errorf("failed to discover speakers: %w", err)
	}

	target, err := topology.Resolve(top, selector)
	if err != nil {
		return topology.Target{}, err
	}

	s.top = top
	s.target = target
	s.spk = s.cp.Speaker(target.Zone)

	log.Debug().
		Str("zone", target.Zone.Name).
		Str("address", target.Zone.Address).
		Stringer("selection", target.Kind).
		Int("zones", top.Len()).
		Msg("Resolved target speaker")
	return target, nil
}

// Target returns the resolved target.
func (s *Service) Target() topology.Target {
	return s.target
}

func (s *Service) ready() error {
	if s.spk == nil {
		return ErrNotConnected
	}
	return nil
}

// ListPlaylists prints the title of every playlist on the target.
func (s *Service) ListPlaylists(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	playlists, err := s.spk.Playlists(ctx)
	if err != nil {
		return err
	}
	for _, pl := range playlists {
		fmt.Fprintln(s.out, pl.Title)
	}
	return nil
}

// SpeakerInfo prints every discovered zone sorted by name. Status lines are
// only printed for zones that play independently or coordinate their group.
func (s *Service) SpeakerInfo(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	zones := s.top.Zones()
	sort.SliceStable(zones, func(i, j int) bool {
		return zones[i].Name < zones[j].Name
	})

	var errs []error
	for _, z := range zones {
		fmt.Fprintln(s.out, z.Name)
		fmt.Fprintf(s.out, "  IP : %s\n", z.Address)

		independent := true
		if s.target.Kind == topology.Party {
			fmt.Fprintf(s.out, "  group coordinator : %s\n", s.top.Coordinator(z).Name)
			independent = s.top.IsCoordinator(z)
		}
		if !independent {
			continue
		}

		if err := s.describe(ctx, z); err != nil {
			log.Error().Err(err).Str("zone", z.Name).Msg("Cannot read speaker status")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) describe(ctx context.Context, z speaker.Zone) error {
	spk := s.cp.Speaker(z)

	state, err := spk.TransportState(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "  state : %s\n", state)

	mode, err := spk.PlayMode(ctx)
	if err != nil {
		return err
	}
	fade, err := spk.CrossFade(ctx)
	if err != nil {
		return err
	}
	flags, err := playmode.Encode(mode, fade)
	if err != nil {
		log.Warn().Err(err).Str("zone", z.Name).Msg("Unknown play mode")
	}
	fmt.Fprintf(s.out, "  mode : %s\n", flags)

	vol, err := spk.Volume(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "  volume : %d\n", vol)

	track, err := spk.CurrentTrack(ctx)
	if err != nil {
		return err
	}
	if track.Artist != "" {
		fmt.Fprintf(s.out, "  artist : %s\n", track.Artist)
	}
	if track.Title != "" {
		fmt.Fprintf(s.out, "  title : %s\n", track.Title)
	}
	return nil
}

// CheckPartyFlags rejects turning party mode on and off in one run.
func CheckPartyFlags(on, off bool) error {
	if on && off {
		return ErrConflictingFlags
	}
	return nil
}

// PartyOn joins every zone to the target's group. The target must have been
// picked explicitly and must not already be grouped.
func (s *Service) PartyOn(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.target.Kind == topology.Party {
		return ErrAlreadyParty
	}
	if err := topology.RequireExplicit(s.target, "to turn on party mode"); err != nil {
		return err
	}

	log.Info().Str("zone", s.target.Zone.Name).Msg("PartyOn")
	return s.spk.EnablePartyMode(ctx)
}

// PartyOff makes every non-coordinator member of the target's group leave it.
func (s *Service) PartyOff(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	members := s.top.Members(s.target.Zone)
	if len(members) < 2 {
		log.Info().Str("zone", s.target.Zone.Name).Msg("Speaker is not grouped")
		return nil
	}

	var errs []error
	for _, m := range members {
		if s.top.IsCoordinator(m) {
			continue
		}
		log.Info().Str("zone", m.Name).Msg("LeaveGroup")
		if err := s.cp.Speaker(m).LeaveGroup(ctx); err != nil {
			log.Error().Err(err).Str("zone", m.Name).Msg("Cannot ungroup speaker")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Toggle pauses a playing target and starts any other.
func (s *Service) Toggle(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := topology.RequireExplicit(s.target, "to toggle pause/play"); err != nil {
		return err
	}

	state, err := s.spk.TransportState(ctx)
	if err != nil {
		return err
	}
	if state == speaker.StatePlaying {
		if err := s.spk.Pause(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Speaker now paused.")
		return nil
	}
	if err := s.spk.Play(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Speaker now playing.")
	return nil
}

// ExportOptions selects what Export writes and where.
type ExportOptions struct {
	// Titles are exported by first exact title match. Ignored when All is set.
	Titles   []string
	All      bool
	Dir      string
	Mask     xspf.DetailMask
	Force    bool
	Prefetch bool
}

// Export writes the selected playlists as XSPF files. A failing playlist is
// logged and the rest are still exported; all failures are returned joined.
func (s *Service) Export(ctx context.Context, opts ExportOptions) error {
	if err := s.ready(); err != nil {
		return err
	}
	playlists, err := s.spk.Playlists(ctx)
	if err != nil {
		return err
	}

	var errs []error
	selected := playlists
	if !opts.All {
		selected = nil
		seen := make(map[string]bool)
		for _, title := range opts.Titles {
			if seen[title] {
				continue
			}
			seen[title] = true
			pl, ok := speaker.FindPlaylist(playlists, title)
			if !ok {
				log.Warn().Str("playlist", title).Msg("Playlist not found, use -l to see available playlists")
				errs = append(errs, fmt.Errorf("%w: %s", ErrPlaylistNotFound, title))
				continue
			}
			selected = append(selected, pl)
		}
	}

	ex := xspf.NewExporter(opts.Mask, opts.Force)
	ex.Prefetch = opts.Prefetch
	for _, pl := range selected {
		_, n, err := ex.ExportFile(ctx, opts.Dir, pl.Title, xspf.BrowsePages(s.spk, pl))
		if err != nil {
			log.Error().Err(err).Str("playlist", pl.Title).Msg("Export failed")
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(s.out, "%s: %d songs\n", pl.Title, n)
	}
	return errors.Join(errs...)
}

// Import restores each file as a playlist on the target. Files are imported
// in order; a failing file does not stop the next one.
func (s *Service) Import(ctx context.Context, files []string) error {
	if err := s.ready(); err != nil {
		return err
	}

	var errs []error
	for _, f := range files {
		res, err := xspf.ImportFile(ctx, f, s.spk)
		if err != nil {
			log.Error().Err(err).Str("file", f).Msg("Import failed")
			errs = append(errs, err)
			continue
		}
		if res.Created {
			fmt.Fprintf(s.out, "%s: %d songs imported\n", res.Title, res.Tracks)
		} else {
			fmt.Fprintf(s.out, "%s: no songs, nothing imported\n", res.Title)
		}
	}
	return errors.Join(errs...)
}

// SetVolume applies an absolute ("40") or relative ("+5", "-5") volume and
// returns the value that was set.
func (s *Service) SetVolume(ctx context.Context, arg string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if err := topology.RequireExplicit(s.target, "when setting volume"); err != nil {
		return 0, err
	}

	v, err := ParseVolume(arg)
	if err != nil {
		return 0, err
	}

	vol := v.Value
	if v.Relative {
		cur, err := s.spk.Volume(ctx)
		if err != nil {
			return 0, err
		}
		vol = cur + v.Value
	}
	vol = ClampVolume(vol)

	log.Info().Int("volume", vol).Msg("SetVolume")
	if err := s.spk.SetVolume(ctx, vol); err != nil {
		return 0, err
	}
	return vol, nil
}

// ReplaceQueue replaces the target's queue with the first playlist titled
// title and starts playing. Shuffling modes start at a random track.
func (s *Service) ReplaceQueue(ctx context.Context, title string, mode speaker.PlayMode) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := topology.RequireExplicit(s.target, "when replacing queue"); err != nil {
		return err
	}

	playlists, err := s.spk.Playlists(ctx)
	if err != nil {
		return err
	}
	pl, ok := speaker.FindPlaylist(playlists, title)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlaylistNotFound, title)
	}

	if err := s.spk.ClearQueue(ctx); err != nil {
		// queue must be empty
		log.Debug().Err(err).Msg("ClearQueue failed")
	}
	if err := s.spk.AddToQueue(ctx, pl); err != nil {
		return err
	}

	idx := 0
	if playmode.Shuffles(mode) {
		size, err := s.spk.QueueSize(ctx)
		if err != nil {
			return err
		}
		if size > 0 {
			idx = s.intn(size)
		}
	}

	log.Info().Str("playlist", pl.Title).Int("position", idx).Msg("ReplaceQueue")
	if err := s.spk.PlayFromQueue(ctx, idx); err != nil {
		return fmt.Errorf("could not play from queue: %w", err)
	}
	return nil
}

// DecodePlayMode decodes flags, logging a malformed string and falling back
// to the codec's default.
func DecodePlayMode(flags string) (speaker.PlayMode, bool) {
	mode, fade, err := playmode.Decode(flags)
	if err != nil {
		log.Error().Err(err).Str("mode", string(mode)).Msg("Using fallback play mode")
	}
	return mode, fade
}

// SetPlayMode applies mode and cross-fade to the target.
func (s *Service) SetPlayMode(ctx context.Context, mode speaker.PlayMode, crossFade bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := topology.RequireExplicit(s.target, "when changing playMode"); err != nil {
		return err
	}

	log.Info().Str("mode", string(mode)).Bool("crossfade", crossFade).Msg("SetPlayMode")
	if err := s.spk.SetPlayMode(ctx, mode); err != nil {
		return err
	}
	return s.spk.SetCrossFade(ctx, crossFade)
}
