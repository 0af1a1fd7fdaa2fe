package xspf

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/rs/zerolog/log"
)

// PageFunc fetches count tracks starting at start. An empty page ends the list.
type PageFunc func(ctx context.Context, start, count int) ([]speaker.Track, error)

// BrowsePages adapts a speaker's Browse call for pl into a PageFunc.
func BrowsePages(s speaker.Speaker, pl speaker.Playlist) PageFunc {
	return func(ctx context.Context, start, count int) ([]speaker.Track, error) {
		return s.Browse(ctx, pl, start, count)
	}
}

// Exporter writes playlists as XSPF documents.
type Exporter struct {
	// Mask selects the exported track fields. Zero means DefaultMask.
	Mask DetailMask
	// Force overwrites existing files.
	Force bool
	// Prefetch fetches the next page while the current one is written.
	Prefetch bool
}

// NewExporter creates an exporter with the given mask.
func NewExporter(mask DetailMask, force bool) *Exporter {
	return &Exporter{Mask: mask, Force: force}
}

func (e *Exporter) mask() DetailMask {
	if e.Mask == 0 {
		return DefaultMask
	}
	return e.Mask
}

// ExportFile writes the playlist title into dir and returns the file path and
// track count. Existing files are left alone unless Force is set. The document
// is written to a temporary file and renamed into place once complete.
func (e *Exporter) ExportFile(ctx context.Context, dir, title string, fetch PageFunc) (string, int, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName(title))

	if !e.Force {
		if _, err := os.Stat(path); err == nil {
			return path, 0, fmt.Errorf("%w: %s", ErrFileExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return path, 0, fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".spl-export-*")
	if err != nil {
		return path, 0, fmt.Errorf("failed to create export file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	count, err := e.Write(ctx, tmp, title, fetch)
	if err != nil {
		return path, count, err
	}
	if err := tmp.Close(); err != nil {
		return path, count, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return path, count, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return path, count, fmt.Errorf("failed to write %s: %w", path, err)
	}
	committed = true

	log.Debug().Str("path", path).Int("tracks", count).Msg("Playlist exported")
	return path, count, nil
}

// Write streams the XSPF document for title to w and returns the number of tracks written.
func (e *Exporter) Write(ctx context.Context, w io.Writer, title string, fetch PageFunc) (int, error) {
	bw := bufio.NewWriter(w)
	tw := &trackWriter{w: bw, mask: e.mask()}

	tw.printf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	tw.printf("<playlist version=\"1\" xmlns=\"%s\">\n", Namespace)
	tw.printf(" <title>%s</title>\n", EscapeText(title))
	tw.printf(" <trackList>\n")
	if tw.err != nil {
		return 0, tw.writeErr()
	}

	next, stop := e.pager(ctx, fetch)
	defer stop()

	count := 0
	for {
		tracks, err := next()
		if err != nil {
			return count, err
		}
		if len(tracks) == 0 {
			break
		}
		for _, t := range tracks {
			tw.track(t)
			count++
		}
		if tw.err == nil {
			tw.err = bw.Flush()
		}
		if tw.err != nil {
			return count, tw.writeErr()
		}
	}

	tw.printf(" </trackList>\n")
	tw.printf("</playlist>\n")
	if tw.err == nil {
		tw.err = bw.Flush()
	}
	if tw.err != nil {
		return count, tw.writeErr()
	}
	return count, nil
}

// pager returns a function yielding successive pages; an empty page means the
// list is done. With Prefetch set the following page is fetched on a
// goroutine while the caller writes the current one. stop must be called.
func (e *Exporter) pager(ctx context.Context, fetch PageFunc) (next func() ([]speaker.Track, error), stop func()) {
	if !e.Prefetch {
		start := 0
		next = func() ([]speaker.Track, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tracks, err := fetch(ctx, start, PageSize)
			start += PageSize
			return tracks, err
		}
		return next, func() {}
	}

	type page struct {
		tracks []speaker.Track
		err    error
	}
	ctx, cancel := context.WithCancel(ctx)
	pages := make(chan page, 1)
	go func() {
		defer close(pages)
		for start := 0; ; start += PageSize {
			tracks, err := fetch(ctx, start, PageSize)
			select {
			case pages <- page{tracks: tracks, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil || len(tracks) == 0 {
				return
			}
		}
	}()

	next = func() ([]speaker.Track, error) {
		p, ok := <-pages
		if !ok {
			return nil, ctx.Err()
		}
		return p.tracks, p.err
	}
	stop = func() {
		cancel()
		for range pages {
		}
	}
	return next, stop
}

type trackWriter struct {
	w    *bufio.Writer
	mask DetailMask
	err  error
}

func (tw *trackWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *trackWriter) track(t speaker.Track) {
	tw.printf("  <track>\n")
	for _, f := range fieldOrder {
		if !tw.mask.Has(f.bit) {
			continue
		}
		var value string
		switch f.bit {
		case Creator:
			value = EscapeText(t.Creator)
		case Title:
			value = EscapeText(t.Title)
		case Album:
			value = EscapeText(t.Album)
		case Location:
			value = uriEscaper.Replace(t.Location())
		}
		tw.printf("   <%s>%s</%s>\n", f.name, value, f.name)
	}
	tw.printf("  </track>\n")
}

func (tw *trackWriter) writeErr() error {
	return fmt.Errorf("failed to write playlist: %w", tw.err)
}
