package player

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrInvalidVolume means the volume argument is not an integer.
var ErrInvalidVolume = errors.New("invalid volume")

// Volume is a parsed volume argument.
type Volume struct {
	Value int
	// Relative is set when the argument carried a sign and is added to the
	// current volume.
	Relative bool
}

// ParseVolume parses "40", "+5" or "-5".
func ParseVolume(arg string) (Volume, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Volume{}, fmt.Errorf("%w: empty", ErrInvalidVolume)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return Volume{}, fmt.Errorf("%w: %q", ErrInvalidVolume, arg)
	}
	return Volume{Value: n, Relative: arg[0] == '+' || arg[0] == '-'}, nil
}

// ClampVolume limits volume to 0-100, warning when it had to.
func ClampVolume(volume int) int {
	if volume < 0 {
		log.Warn().Int("requested", volume).Msg("Volume too low, using 0")
		return 0
	} else if volume > 100 {
		log.Warn().Int("requested", volume).Msg("Volume too high, using 100")
		return 100
	}
	return volume
}
