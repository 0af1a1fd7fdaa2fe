package xspf

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/rs/zerolog/log"
)

// Destination is the part of a speaker an import writes to.
type Destination interface {
	Playlists(ctx context.Context) ([]speaker.Playlist, error)
	ClearQueue(ctx context.Context) error
	AddURIToQueue(ctx context.Context, uri string) error
	CreatePlaylistFromQueue(ctx context.Context, title string) error
}

// Result summarises a finished import.
type Result struct {
	Title   string
	Tracks  int
	Created bool
}

// ImportFile imports the XSPF file at path into dest.
func ImportFile(ctx context.Context, path string, dest Destination) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	res, err := Import(ctx, f, dest)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Import reads an XSPF document from r and recreates it on dest as a named
// playlist, using dest's queue as the staging area.
//
// The queue is only cleared once the first location is seen, so a document
// without tracks leaves dest untouched. Queue changes made before a parse or
// device error are not rolled back.
func Import(ctx context.Context, r io.Reader, dest Destination) (Result, error) {
	im := &importer{ctx: ctx, dest: dest, state: stateExpectRoot}
	dec := xml.NewDecoder(r)
	var charsetErr error
	dec.CharsetReader = func(charset string, _ io.Reader) (io.Reader, error) {
		charsetErr = fmt.Errorf("%w: %s", ErrUnsupportedEncoding, charset)
		return nil, charsetErr
	}

	for im.state != stateDone {
		tok, err := dec.Token()
		if err == io.EOF {
			if err := im.finish(); err != nil {
				return im.result(), err
			}
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			switch {
			case errors.As(err, &syntaxErr):
				return im.result(), fmt.Errorf("%w: %v", ErrMalformedXML, err)
			case charsetErr != nil:
				return im.result(), fmt.Errorf("%w: %w", ErrMalformedXML, charsetErr)
			}
			return im.result(), fmt.Errorf("failed to read playlist: %w", err)
		}
		if err := im.handle(tok); err != nil {
			return im.result(), err
		}
	}

	return im.result(), nil
}

type importState int

const (
	stateExpectRoot importState = iota
	stateExpectTitle
	stateExpectLocations
	stateDone
)

func (s importState) String() string {
	switch s {
	case stateExpectRoot:
		return "expect-root"
	case stateExpectTitle:
		return "expect-title"
	case stateExpectLocations:
		return "expect-locations"
	default:
		return "done"
	}
}

var (
	playlistName = xml.Name{Space: Namespace, Local: "playlist"}
	titleName    = xml.Name{Space: Namespace, Local: "title"}
	locationName = xml.Name{Space: Namespace, Local: "location"}
)

type importer struct {
	ctx   context.Context
	dest  Destination
	state importState
	depth int

	// text accumulates character data while collecting is set.
	text       strings.Builder
	collecting bool

	title      string
	tracks     int
	queueReady bool
	created    bool
}

// handle is the single dispatch point: every token goes through the
// handler of the current state.
func (im *importer) handle(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		im.depth++
	case xml.CharData:
		if im.collecting {
			im.text.Write(t)
		}
		return nil
	}

	var err error
	switch im.state {
	case stateExpectRoot:
		err = im.expectRoot(tok)
	case stateExpectTitle:
		err = im.expectTitle(tok)
	case stateExpectLocations:
		err = im.expectLocations(tok)
	}

	if _, ok := tok.(xml.EndElement); ok {
		im.depth--
	}
	return err
}

func (im *importer) expectRoot(tok xml.Token) error {
	start, ok := tok.(xml.StartElement)
	if !ok {
		// prolog: declaration, comments, directives
		return nil
	}
	if start.Name != playlistName {
		return fmt.Errorf("%w: root element is <%s>", ErrNotXSPF, start.Name.Local)
	}
	im.state = stateExpectTitle
	return nil
}

func (im *importer) expectTitle(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		if t.Name == titleName && im.depth == 2 {
			im.startText()
		}
	case xml.EndElement:
		if t.Name != titleName || !im.collecting {
			return nil
		}
		im.title = im.endText()
		if im.title == "" {
			return fmt.Errorf("%w: playlist title is empty", ErrNotXSPF)
		}
		if err := im.checkTitleFree(); err != nil {
			return err
		}
		im.state = stateExpectLocations
	}
	return nil
}

func (im *importer) checkTitleFree() error {
	playlists, err := im.dest.Playlists(im.ctx)
	if err != nil {
		return err
	}
	if _, exists := speaker.FindPlaylist(playlists, im.title); exists {
		return fmt.Errorf("%w: %q", ErrPlaylistExists, im.title)
	}
	return nil
}

func (im *importer) expectLocations(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		if t.Name == locationName {
			im.startText()
		}
	case xml.EndElement:
		if t.Name != locationName || !im.collecting {
			return nil
		}
		uri := strings.TrimSpace(im.endText())
		if uri == "" {
			log.Warn().Str("playlist", im.title).Msg("Skipping track without location")
			return nil
		}
		return im.enqueue(uri)
	}
	return nil
}

func (im *importer) enqueue(uri string) error {
	if !im.queueReady {
		if err := im.dest.ClearQueue(im.ctx); err != nil {
			return err
		}
		im.queueReady = true
	}
	if err := im.dest.AddURIToQueue(im.ctx, uri); err != nil {
		return err
	}
	im.tracks++
	return nil
}

// finish runs at end of input.
func (im *importer) finish() error {
	switch im.state {
	case stateExpectRoot:
		return fmt.Errorf("%w: no root element", ErrNotXSPF)
	case stateExpectTitle:
		return fmt.Errorf("%w: playlist has no title", ErrNotXSPF)
	}
	im.state = stateDone

	if im.tracks == 0 {
		log.Info().Str("playlist", im.title).Msg("Playlist file has no tracks, nothing imported")
		return nil
	}
	if err := im.dest.CreatePlaylistFromQueue(im.ctx, im.title); err != nil {
		return err
	}
	im.created = true
	return im.dest.ClearQueue(im.ctx)
}

func (im *importer) startText() {
	im.text.Reset()
	im.collecting = true
}

func (im *importer) endText() string {
	im.collecting = false
	s := im.text.String()
	im.text.Reset()
	return s
}

func (im *importer) result() Result {
	return Result{Title: im.title, Tracks: im.tracks, Created: im.created}
}
