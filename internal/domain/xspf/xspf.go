// Package xspf backs up playlists to XSPF files and restores them.
//
// Export pages through a playlist and writes the document as it goes; import
// walks the XML token stream with a small state machine and feeds the
// locations straight into a speaker queue. Neither side holds a whole
// playlist in memory.
package xspf

import (
	"errors"
	"fmt"
	"strings"
)

// Namespace is the XSPF v1 namespace URI.
const Namespace = "http://xspf.org/ns/0/"

// Extension is appended to exported file names.
const Extension = ".xspf"

// PageSize is the number of tracks requested per browse call.
const PageSize = 100

var (
	ErrFileExists   = errors.New("file already exists")
	ErrFileNotFound = errors.New("file not found")
	ErrNotXSPF      = errors.New("file is not an xspf file")
	ErrMalformedXML = errors.New("invalid XML format")
	// ErrUnsupportedEncoding is wrapped in ErrMalformedXML for documents that
	// declare an encoding other than UTF-8.
	ErrUnsupportedEncoding = errors.New("unsupported document encoding")
	ErrPlaylistExists      = errors.New("playlist already exists, it must be deleted before importing")
	ErrUnknownDetail       = errors.New("unknown detail field")
)

// DetailMask selects which track fields are exported.
type DetailMask uint8

const (
	Creator DetailMask = 1 << iota
	Title
	Album
	Location
)

// DefaultMask exports locations only, which is all import needs.
const DefaultMask = Location

// FullMask exports every field.
const FullMask = Creator | Title | Album | Location

// fieldOrder is the fixed emission order.
var fieldOrder = []struct {
	bit  DetailMask
	name string
}{
	{Creator, "creator"},
	{Title, "title"},
	{Album, "album"},
	{Location, "location"},
}

// Has reports whether every bit in f is set.
func (m DetailMask) Has(f DetailMask) bool {
	return m&f == f
}

func (m DetailMask) String() string {
	var names []string
	for _, f := range fieldOrder {
		if m.Has(f.bit) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseDetailMask parses a comma separated list of field names
// (creator, title, album, location) in any order.
func ParseDetailMask(s string) (DetailMask, error) {
	var m DetailMask
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		found := false
		for _, f := range fieldOrder {
			if f.name == name {
				m |= f.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownDetail, part)
		}
	}
	if m == 0 {
		return 0, fmt.Errorf("%w: empty field list", ErrUnknownDetail)
	}
	return m, nil
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// uriEscaper only touches characters that would break the document.
var uriEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeText entity-escapes s for element content, quotes included.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// FileName turns a playlist title into the export file name.
func FileName(title string) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(title)
	return name + Extension
}
