package main

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/edumarques81/spl/internal/config"
	"github.com/edumarques81/spl/internal/domain/player"
	"github.com/edumarques81/spl/internal/domain/playmode"
	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/edumarques81/spl/internal/domain/xspf"
	"github.com/edumarques81/spl/internal/version"
)

type rootFlags struct {
	ListPlaylists bool
	SpeakerInfo   bool
	Export        []string
	ExportAll     bool
	Details       bool
	Fields        string
	Force         bool
	Prefetch      bool
	OutputDir     string
	Import        []string
	Speaker       string
	PartyOn       bool
	PartyOff      bool
	ReplaceQueue  string
	PlayMode      string
	Volume        string
	Toggle        bool
	Interface     string
	Backend       string
	Config        string
	Debug         bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "spl",
		Short: "Back up, restore and play speaker playlists",
		Long: "spl exports speaker playlists to XSPF files, imports XSPF files as playlists " +
			"and controls the speakers: party mode, volume, play mode and queue.",
		Version:       version.GetInfo().String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !flags.anyAction() {
				return cmd.Help()
			}
			cfg, err := loadConfig(cmd.Flags(), flags)
			if err != nil {
				return err
			}
			setupLogging(stderr, cfg.Debug)
			log.Debug().Msg(version.GetInfo().String())
			log.Debug().
				Str("backend", cfg.Backend).
				Str("speaker", cfg.Speaker).
				Str("interface", cfg.Interface).
				Str("output_dir", cfg.OutputDir).
				Dur("discovery_timeout", cfg.DiscoveryTimeout).
				Msg("Configuration")

			cp, closeCP, err := newControlPoint(cfg)
			if err != nil {
				return err
			}
			defer closeCP()

			return run(cmd.Context(), player.NewService(cp, stdout), cmd.Flags(), flags, cfg)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("{{.Version}}\n")

	f := cmd.Flags()
	f.SortFlags = false
	f.BoolVarP(&flags.ListPlaylists, "listPlaylist", "l", false, "List the playlists of the speaker")
	f.BoolVarP(&flags.SpeakerInfo, "listSpeakerInfo", "S", false, "List every speaker with its status")
	f.StringArrayVarP(&flags.Export, "exportPlaylist", "x", nil, "Export a playlist to an XSPF file (repeatable)")
	f.BoolVarP(&flags.ExportAll, "exportAllPlaylists", "X", false, "Export every playlist")
	f.BoolVarP(&flags.Details, "exportDetails", "d", false, "Export creator, title and album besides the location")
	f.StringVar(&flags.Fields, "fields", "", "Comma separated fields to export (creator,title,album,location)")
	f.BoolVarP(&flags.Force, "force", "f", false, "Overwrite existing export files")
	f.BoolVar(&flags.Prefetch, "prefetch", false, "Fetch the next export page while writing the current one")
	f.StringVarP(&flags.OutputDir, "outputDir", "o", "", "Directory for exported files")
	f.StringArrayVarP(&flags.Import, "importPlaylistFile", "i", nil, "Import an XSPF file as a playlist (repeatable)")
	f.StringVarP(&flags.Speaker, "speaker", "s", "", "Speaker name or address")
	f.BoolVarP(&flags.PartyOn, "partyModeOn", "P", false, "Join every speaker to the selected one")
	f.BoolVarP(&flags.PartyOff, "partyModeOff", "p", false, "Ungroup the speakers")
	f.StringVarP(&flags.ReplaceQueue, "replaceQueue", "q", "", "Replace the queue with PLAYLIST and start playing")
	f.StringVarP(&flags.PlayMode, "playMode", "m", "", "Play mode flags: S shuffle, R repeat, F cross-fade (lowercase turns off, default "+playmode.DefaultFlags+")")
	f.StringVarP(&flags.Volume, "volume", "v", "", "Volume N, or +N/-N relative to the current one")
	f.BoolVarP(&flags.Toggle, "togglePausePlay", "t", false, "Toggle pause/play")
	f.StringVarP(&flags.Interface, "interface", "I", "", "Interface address for discovery")
	f.StringVar(&flags.Backend, "backend", "", "Speaker backend: sonos or mpd")
	f.StringVar(&flags.Config, "config", "", "Path to the config file")
	f.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	return cmd
}

func (f *rootFlags) anyAction() bool {
	return f.ListPlaylists || f.SpeakerInfo || len(f.Export) > 0 || f.ExportAll ||
		len(f.Import) > 0 || f.PartyOn || f.PartyOff || f.ReplaceQueue != "" ||
		f.PlayMode != "" || f.Volume != "" || f.Toggle
}

// loadConfig applies changed command-line flags on top of the loaded config.
func loadConfig(fs *pflag.FlagSet, flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return config.Config{}, err
	}
	if fs.Changed("speaker") {
		cfg.Speaker = flags.Speaker
	}
	if fs.Changed("interface") {
		cfg.Interface = flags.Interface
	}
	if fs.Changed("outputDir") {
		cfg.OutputDir = config.ExpandHome(flags.OutputDir)
	}
	if fs.Changed("debug") {
		cfg.Debug = flags.Debug
	}
	if fs.Changed("backend") {
		cfg.Backend = strings.ToLower(strings.TrimSpace(flags.Backend))
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// exportMask picks the detail mask: --fields wins over -d.
func exportMask(flags *rootFlags) (xspf.DetailMask, error) {
	switch {
	case flags.Fields != "":
		return xspf.ParseDetailMask(flags.Fields)
	case flags.Details:
		return xspf.FullMask, nil
	default:
		return xspf.DefaultMask, nil
	}
}

// run executes the requested actions in a fixed order. Listing, speaker
// info, party mode, toggle, export and import each end the run; volume,
// replace queue and play mode are applied together.
func run(ctx context.Context, svc *player.Service, fs *pflag.FlagSet, flags *rootFlags, cfg config.Config) error {
	mask, err := exportMask(flags)
	if err != nil {
		return err
	}

	if _, err := svc.Connect(ctx, cfg.Interface, cfg.Speaker); err != nil {
		return err
	}

	switch {
	case flags.ListPlaylists:
		return svc.ListPlaylists(ctx)
	case flags.SpeakerInfo:
		return svc.SpeakerInfo(ctx)
	}

	if err := player.CheckPartyFlags(flags.PartyOn, flags.PartyOff); err != nil {
		return err
	}
	switch {
	case flags.PartyOn:
		return svc.PartyOn(ctx)
	case flags.PartyOff:
		return svc.PartyOff(ctx)
	case flags.Toggle:
		return svc.Toggle(ctx)
	case len(flags.Export) > 0 || flags.ExportAll:
		return svc.Export(ctx, player.ExportOptions{
			Titles:   flags.Export,
			All:      flags.ExportAll,
			Dir:      cfg.OutputDir,
			Mask:     mask,
			Force:    flags.Force,
			Prefetch: flags.Prefetch,
		})
	case len(flags.Import) > 0:
		return svc.Import(ctx, flags.Import)
	}

	var deviceErr error
	// step reports device failures and keeps going; anything else ends the run.
	step := func(err error) error {
		if err == nil {
			return nil
		}
		if speaker.IsDeviceError(err) {
			log.Error().Err(err).Msg("Cannot communicate with the speaker")
			deviceErr = err
			return nil
		}
		return err
	}

	if flags.Volume != "" {
		_, err := svc.SetVolume(ctx, flags.Volume)
		if err := step(err); err != nil {
			return err
		}
	}

	modeFlags := playmode.DefaultFlags
	if fs.Changed("playMode") {
		modeFlags = flags.PlayMode
	}
	mode, fade := player.DecodePlayMode(modeFlags)

	if flags.ReplaceQueue != "" {
		if err := step(svc.ReplaceQueue(ctx, flags.ReplaceQueue, mode)); err != nil {
			return err
		}
	}
	if fs.Changed("playMode") {
		if err := step(svc.SetPlayMode(ctx, mode, fade)); err != nil {
			return err
		}
	}
	return deviceErr
}
