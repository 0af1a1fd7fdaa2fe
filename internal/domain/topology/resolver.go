// Package topology decides which zone a command is sent to.
//
// A selector picks a zone by address or name; without one the first
// discovered zone is used. When the picked zone is part of a multi-zone
// group the command goes to the group's coordinator instead, which is how
// party mode is recognised.
package topology

import (
	"errors"
	"fmt"

	"github.com/edumarques81/spl/internal/domain/speaker"
)

var (
	// ErrNoSpeakersFound means discovery returned nothing.
	ErrNoSpeakersFound = errors.New("discover returned no speakers")
	// ErrSpeakerNotFound means no zone matched the selector.
	ErrSpeakerNotFound = errors.New("unable to find speaker")
	// ErrAmbiguousTarget means an action needs an explicit speaker or an established party.
	ErrAmbiguousTarget = errors.New("speaker must be specified or the speakers must be in party mode")
)

// SelectionKind records how the target was chosen.
type SelectionKind int

const (
	Random SelectionKind = iota
	Specific
	Party
)

func (k SelectionKind) String() string {
	switch k {
	case Specific:
		return "specific"
	case Party:
		return "party"
	default:
		return "random"
	}
}

// Target is the effective command target.
type Target struct {
	Zone speaker.Zone
	Kind SelectionKind
}

// Resolve picks the command target from top.
//
// A non-empty selector must equal a zone's address or name exactly; the first
// zone in discovery order wins. An empty selector takes the first zone.
// Zones in a group with more than one member resolve to the coordinator and
// the kind becomes Party.
func Resolve(top *speaker.Topology, selector string) (Target, error) {
	if top.Len() == 0 {
		return Target{}, ErrNoSpeakersFound
	}

	var target Target
	zones := top.Zones()
	if selector != "" {
		found := false
		for _, z := range zones {
			if z.Address == selector || z.Name == selector {
				target = Target{Zone: z, Kind: Specific}
				found = true
				break
			}
		}
		if !found {
			return Target{}, fmt.Errorf("%w: %s", ErrSpeakerNotFound, selector)
		}
	} else {
		target = Target{Zone: zones[0], Kind: Random}
	}

	if len(top.Members(target.Zone)) > 1 {
		target.Zone = top.Coordinator(target.Zone)
		target.Kind = Party
	}

	return target, nil
}

// RequireExplicit rejects randomly chosen targets for action.
func RequireExplicit(t Target, action string) error {
	if t.Kind == Random {
		return fmt.Errorf("%w (%s)", ErrAmbiguousTarget, action)
	}
	return nil
}
