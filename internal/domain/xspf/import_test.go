package xspf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/edumarques81/spl/internal/domain/speaker/speakertest"
)

const twoTrackDoc = `<?xml version="1.0" encoding="UTF-8"?>
<playlist version="1" xmlns="http://xspf.org/ns/0/">
 <title>Sunday Morning</title>
 <trackList>
  <track>
   <title>First</title>
   <location>x-file-cifs://nas/1.flac</location>
  </track>
  <track>
   <location>
     x-file-cifs://nas/2.flac
   </location>
  </track>
 </trackList>
</playlist>
`

func TestImport(t *testing.T) {
	dst := speakertest.New()
	dst.Queue = []string{"left-over"}

	res, err := Import(context.Background(), strings.NewReader(twoTrackDoc), dst)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Title != "Sunday Morning" || res.Tracks != 2 || !res.Created {
		t.Errorf("unexpected result %+v", res)
	}

	want := []string{
		"Playlists",
		"ClearQueue",
		"AddURIToQueue(x-file-cifs://nas/1.flac)",
		"AddURIToQueue(x-file-cifs://nas/2.flac)",
		"CreatePlaylistFromQueue(Sunday Morning)",
		"ClearQueue",
	}
	if strings.Join(dst.Calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v\nwant    %v", dst.Calls, want)
	}
	if len(dst.Queue) != 0 {
		t.Errorf("queue should end empty, got %v", dst.Queue)
	}
}

func TestImportNotXSPF(t *testing.T) {
	docs := map[string]string{
		"wrong root":      `<smil><head><title>x</title></head></smil>`,
		"wrong namespace": `<playlist xmlns="http://example.com/"><title>x</title></playlist>`,
		"no namespace":    `<playlist><title>x</title><trackList><track><location>u</location></track></trackList></playlist>`,
		"empty document":  ``,
		"no title":        `<playlist xmlns="http://xspf.org/ns/0/"><trackList><track><location>u</location></track></trackList></playlist>`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			dst := speakertest.New()
			_, err := Import(context.Background(), strings.NewReader(doc), dst)
			if !errors.Is(err, ErrNotXSPF) {
				t.Fatalf("expected ErrNotXSPF, got %v", err)
			}
			if n := dst.QueueMutations(); n != 0 {
				t.Errorf("%d queue mutations issued, want 0", n)
			}
		})
	}
}

func TestImportPlaylistAlreadyExists(t *testing.T) {
	dst := speakertest.New()
	dst.AddPlaylist("Sunday Morning")

	_, err := Import(context.Background(), strings.NewReader(twoTrackDoc), dst)
	if !errors.Is(err, ErrPlaylistExists) {
		t.Fatalf("expected ErrPlaylistExists, got %v", err)
	}
	if n := dst.QueueMutations(); n != 0 {
		t.Errorf("%d queue mutations issued, want 0", n)
	}
}

func TestImportWithoutLocations(t *testing.T) {
	doc := `<?xml version="1.0"?>
<playlist version="1" xmlns="http://xspf.org/ns/0/">
 <title>Empty</title>
 <trackList/>
</playlist>`

	dst := speakertest.New()
	dst.Queue = []string{"keep"}

	res, err := Import(context.Background(), strings.NewReader(doc), dst)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Created || res.Tracks != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if n := dst.QueueMutations(); n != 0 {
		t.Errorf("%d queue mutations issued, want 0", n)
	}
	if len(dst.Queue) != 1 {
		t.Error("queue should be untouched")
	}
}

func TestImportMalformedKeepsPartialQueue(t *testing.T) {
	doc := `<playlist version="1" xmlns="http://xspf.org/ns/0/">
 <title>Broken</title>
 <trackList>
  <track><location>u1</location></track>
  <track><location>u2</track>
`
	dst := speakertest.New()
	_, err := Import(context.Background(), strings.NewReader(doc), dst)
	if !errors.Is(err, ErrMalformedXML) {
		t.Fatalf("expected ErrMalformedXML, got %v", err)
	}
	if dst.Called("CreatePlaylistFromQueue") {
		t.Error("no playlist should be created from a malformed file")
	}
	if len(dst.Queue) != 1 || dst.Queue[0] != "u1" {
		t.Errorf("queue = %v, want the tracks added before the error", dst.Queue)
	}
}

func TestImportRejectsNonUTF8Encoding(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>
<playlist version="1" xmlns="http://xspf.org/ns/0/">
 <title>Latin</title>
 <trackList><track><location>u1</location></track></trackList>
</playlist>`
	dst := speakertest.New()
	_, err := Import(context.Background(), strings.NewReader(doc), dst)
	if !errors.Is(err, ErrMalformedXML) || !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrMalformedXML and ErrUnsupportedEncoding, got %v", err)
	}
	if !strings.Contains(err.Error(), "ISO-8859-1") {
		t.Errorf("error %q should name the encoding", err)
	}
	if dst.Called("ClearQueue") || dst.Called("AddURIToQueue") || len(dst.Queue) != 0 {
		t.Errorf("queue must not change, calls %v", dst.Calls)
	}
}

func TestImportDeviceErrorStops(t *testing.T) {
	dst := speakertest.New()
	boom := speaker.WrapDeviceError("AddURIToQueue", "Den", errors.New("timeout"))
	dst.Errors["AddURIToQueue"] = boom

	_, err := Import(context.Background(), strings.NewReader(twoTrackDoc), dst)
	if !speaker.IsDeviceError(err) {
		t.Fatalf("expected a device error, got %v", err)
	}
	if dst.Called("CreatePlaylistFromQueue") {
		t.Error("playlist must not be created after a failed add")
	}
}

func TestImportIgnoresTrackTitleBeforePlaylistTitle(t *testing.T) {
	doc := `<playlist xmlns="http://xspf.org/ns/0/">
 <!-- a comment -->
 <title>Real &amp; Proper</title>
 <trackList><track><title>Not me</title><location>u</location></track></trackList>
</playlist>`
	dst := speakertest.New()
	res, err := Import(context.Background(), strings.NewReader(doc), dst)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Title != "Real & Proper" {
		t.Errorf("title = %q, want %q", res.Title, "Real & Proper")
	}
}

func TestImportFileNotFound(t *testing.T) {
	dst := speakertest.New()
	_, err := ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.xspf"), dst)
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if len(dst.Calls) != 0 {
		t.Error("no speaker calls expected")
	}
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sunday.xspf")
	if err := os.WriteFile(path, []byte(twoTrackDoc), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	dst := speakertest.New()
	res, err := ImportFile(context.Background(), path, dst)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if res.Tracks != 2 {
		t.Errorf("tracks = %d, want 2", res.Tracks)
	}
}

func TestImportStateNames(t *testing.T) {
	for s, want := range map[importState]string{
		stateExpectRoot:      "expect-root",
		stateExpectTitle:     "expect-title",
		stateExpectLocations: "expect-locations",
		stateDone:            "done",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
