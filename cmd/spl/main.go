// Package main is the entry point for spl, the speaker playlist tool.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/spl/internal/config"
	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/edumarques81/spl/internal/domain/topology"
	"github.com/edumarques81/spl/internal/infra/mpd"
	"github.com/edumarques81/spl/internal/infra/sonos"
)

// Process exit codes.
const (
	exitOK              = 0
	exitSpeakerNotFound = -1
	exitFailure         = -2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the root command and maps its error to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	setupLogging(stderr, false)

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("spl failed")
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, topology.ErrSpeakerNotFound):
		return exitSpeakerNotFound
	default:
		return exitFailure
	}
}

func setupLogging(w io.Writer, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
}

// newControlPoint builds the backend selected by cfg. The returned func
// releases its connections.
var newControlPoint = func(cfg config.Config) (speaker.ControlPoint, func(), error) {
	switch cfg.Backend {
	case config.BackendMPD:
		client := mpd.NewClient(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password)
		cp := mpd.NewControlPoint(client, cfg.MPD.Name, cfg.MPD.CrossfadeSeconds)
		return cp, func() {
			if err := cp.Close(); err != nil {
				log.Debug().Err(err).Msg("MPD close failed")
			}
		}, nil
	case config.BackendSonos:
		return sonos.NewControlPoint(cfg.DiscoveryTimeout), func() {}, nil
	default:
		return nil, nil, config.ErrInvalid
	}
}
