// Package playmode converts between the compact S/R/F flag string used on the
// command line and a speaker's play mode plus cross-fade setting.
//
// Each letter stands for one setting: S shuffle, R repeat, F cross-fade.
// Upper case turns the setting on, lower case (or leaving the letter out)
// turns it off. "SRf" means shuffle and repeat on, cross-fade off.
package playmode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edumarques81/spl/internal/domain/speaker"
)

// DefaultFlags is used when replacing the queue without an explicit mode.
const DefaultFlags = "SRf"

// unknownCode is emitted for modes the codec does not know.
const unknownCode = "xx"

var (
	// ErrFormat means the flag string holds a letter other than S, R or F, or repeats one.
	// Decode still returns a usable SHUFFLE result alongside it.
	ErrFormat = errors.New("unknown playMode format")
	// ErrUnknownMode means a speaker reported a mode outside the known four.
	ErrUnknownMode = errors.New("speaker gave an unknown play_mode")
)

// Decode parses flags into a play mode and cross-fade setting.
// On ErrFormat the mode falls back to SHUFFLE and cross-fade follows the
// presence of an upper-case F.
func Decode(flags string) (speaker.PlayMode, bool, error) {
	crossFade := strings.Contains(flags, "F")

	if !wellFormed(flags) {
		return speaker.PlayModeShuffle, crossFade, fmt.Errorf("%w: %q", ErrFormat, flags)
	}

	shuffle := strings.Contains(flags, "S")
	repeat := strings.Contains(flags, "R")

	return modeFor(shuffle, repeat), crossFade, nil
}

// Encode renders a mode and cross-fade setting as flags.
// Unknown modes render as "xx" followed by the fade letter, with ErrUnknownMode.
func Encode(mode speaker.PlayMode, crossFade bool) (string, error) {
	fade := "f"
	if crossFade {
		fade = "F"
	}

	var code string
	var err error
	switch mode {
	case speaker.PlayModeNormal:
		code = "sr"
	case speaker.PlayModeRepeatAll:
		code = "sR"
	case speaker.PlayModeShuffle:
		code = "SR"
	case speaker.PlayModeShuffleNoRepeat:
		code = "Sr"
	default:
		code = unknownCode
		err = fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}

	return code + fade, err
}

// Shuffles reports whether mode plays the queue in random order.
func Shuffles(mode speaker.PlayMode) bool {
	return mode == speaker.PlayModeShuffle || mode == speaker.PlayModeShuffleNoRepeat
}

// Repeats reports whether mode loops the queue.
func Repeats(mode speaker.PlayMode) bool {
	return mode == speaker.PlayModeShuffle || mode == speaker.PlayModeRepeatAll
}

// FromFlags maps independent shuffle/repeat switches to a play mode.
func FromFlags(shuffle, repeat bool) speaker.PlayMode {
	return modeFor(shuffle, repeat)
}

func modeFor(shuffle, repeat bool) speaker.PlayMode {
	switch {
	case shuffle && repeat:
		return speaker.PlayModeShuffle
	case shuffle:
		return speaker.PlayModeShuffleNoRepeat
	case repeat:
		return speaker.PlayModeRepeatAll
	default:
		return speaker.PlayModeNormal
	}
}

// wellFormed reports whether flags holds each of S, R and F at most once.
// The empty string is well formed and means every setting is off.
func wellFormed(flags string) bool {
	seen := make(map[rune]bool, 3)
	for _, r := range strings.ToLower(flags) {
		switch r {
		case 's', 'r', 'f':
		default:
			return false
		}
		if seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}
