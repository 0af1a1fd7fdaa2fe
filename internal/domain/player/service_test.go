package player

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/edumarques81/spl/internal/domain/speaker/speakertest"
	"github.com/edumarques81/spl/internal/domain/topology"
	"github.com/edumarques81/spl/internal/domain/xspf"
)

// household: Kitchen plays alone, Den coordinates a party with Attic.
func household() *speaker.Topology {
	return speaker.NewTopology(
		[]speaker.Zone{
			{ID: "A", Address: "1.1.1.1", Name: "Kitchen", GroupID: "gA"},
			{ID: "B", Address: "2.2.2.2", Name: "Den", GroupID: "gB"},
			{ID: "C", Address: "3.3.3.3", Name: "Attic", GroupID: "gB"},
		},
		[]speaker.Group{
			{ID: "gA", CoordinatorID: "A", MemberIDs: []string{"A"}},
			{ID: "gB", CoordinatorID: "B", MemberIDs: []string{"B", "C"}},
		},
	)
}

func connect(t *testing.T, selector string) (*Service, *speakertest.ControlPoint, *bytes.Buffer) {
	t.Helper()
	cp := speakertest.NewControlPoint(household())
	out := &bytes.Buffer{}
	s := NewService(cp, out)
	if _, err := s.Connect(context.Background(), "", selector); err != nil {
		t.Fatalf("Connect(%q) failed: %v", selector, err)
	}
	return s, cp, out
}

func TestConnect(t *testing.T) {
	tests := []struct {
		selector string
		zone     string
		kind     topology.SelectionKind
	}{
		{"", "A", topology.Random},
		{"Kitchen", "A", topology.Specific},
		{"2.2.2.2", "B", topology.Party},
		{"Attic", "B", topology.Party},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			s, _, _ := connect(t, tt.selector)
			got := s.Target()
			if got.Zone.ID != tt.zone || got.Kind != tt.kind {
				t.Errorf("target = %s/%s, want %s/%s", got.Zone.ID, got.Kind, tt.zone, tt.kind)
			}
		})
	}
}

func TestConnectErrors(t *testing.T) {
	cp := speakertest.NewControlPoint(household())
	s := NewService(cp, &bytes.Buffer{})
	if _, err := s.Connect(context.Background(), "10.0.0.1", "Garage"); !errors.Is(err, topology.ErrSpeakerNotFound) {
		t.Errorf("expected ErrSpeakerNotFound, got %v", err)
	}
	if len(cp.Interfaces) != 1 || cp.Interfaces[0] != "10.0.0.1" {
		t.Errorf("interface not passed to discovery: %v", cp.Interfaces)
	}

	boom := errors.New("no route")
	cp.DiscoverErr = boom
	if _, err := s.Connect(context.Background(), "", ""); !errors.Is(err, boom) {
		t.Errorf("expected discovery error, got %v", err)
	}

	empty := NewService(speakertest.NewControlPoint(speaker.NewTopology(nil, nil)), &bytes.Buffer{})
	if _, err := empty.Connect(context.Background(), "", ""); !errors.Is(err, topology.ErrNoSpeakersFound) {
		t.Errorf("expected ErrNoSpeakersFound, got %v", err)
	}
}

func TestNotConnected(t *testing.T) {
	s := NewService(speakertest.NewControlPoint(household()), &bytes.Buffer{})
	if err := s.ListPlaylists(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestListPlaylists(t *testing.T) {
	s, cp, out := connect(t, "Kitchen")
	cp.Speakers["A"].AddPlaylist("Jazz")
	cp.Speakers["A"].AddPlaylist("Rock")

	if err := s.ListPlaylists(context.Background()); err != nil {
		t.Fatalf("ListPlaylists failed: %v", err)
	}
	if out.String() != "Jazz\nRock\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestSpeakerInfo(t *testing.T) {
	t.Run("independent", func(t *testing.T) {
		s, cp, out := connect(t, "Kitchen")
		cp.Speakers["B"].Track = speaker.TrackInfo{Artist: "Miles Davis", Title: "So What"}
		cp.Speakers["A"].Mode = speaker.PlayModeShuffle
		cp.Speakers["A"].Fade = true

		if err := s.SpeakerInfo(context.Background()); err != nil {
			t.Fatalf("SpeakerInfo failed: %v", err)
		}
		want := `Attic
  IP : 3.3.3.3
  state : STOPPED
  mode : srf
  volume : 50
Den
  IP : 2.2.2.2
  state : STOPPED
  mode : srf
  volume : 50
  artist : Miles Davis
  title : So What
Kitchen
  IP : 1.1.1.1
  state : STOPPED
  mode : SRF
  volume : 50
`
		if out.String() != want {
			t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
		}
	})

	t.Run("party", func(t *testing.T) {
		s, _, out := connect(t, "Den")
		if err := s.SpeakerInfo(context.Background()); err != nil {
			t.Fatalf("SpeakerInfo failed: %v", err)
		}
		want := `Attic
  IP : 3.3.3.3
  group coordinator : Den
Den
  IP : 2.2.2.2
  group coordinator : Den
  state : STOPPED
  mode : srf
  volume : 50
Kitchen
  IP : 1.1.1.1
  group coordinator : Kitchen
  state : STOPPED
  mode : srf
  volume : 50
`
		if out.String() != want {
			t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
		}
	})

	t.Run("device error continues", func(t *testing.T) {
		s, cp, out := connect(t, "Kitchen")
		cp.Speakers["C"].Errors["TransportState"] = speaker.WrapDeviceError("GetTransportInfo", "Attic", errors.New("timeout"))

		err := s.SpeakerInfo(context.Background())
		if !speaker.IsDeviceError(err) {
			t.Fatalf("expected a device error, got %v", err)
		}
		if !strings.Contains(out.String(), "Kitchen\n") {
			t.Error("zones after the failing one should still be listed")
		}
	})
}

func TestCheckPartyFlags(t *testing.T) {
	if err := CheckPartyFlags(true, true); !errors.Is(err, ErrConflictingFlags) {
		t.Errorf("expected ErrConflictingFlags, got %v", err)
	}
	if err := CheckPartyFlags(true, false); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPartyOn(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		wantErr  error
	}{
		{"random target", "", topology.ErrAmbiguousTarget},
		{"already grouped", "Attic", ErrAlreadyParty},
		{"specific", "Kitchen", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, cp, _ := connect(t, tt.selector)
			err := s.PartyOn(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PartyOn() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && !cp.Speakers["A"].PartyMode {
				t.Error("party mode not enabled on the target")
			}
		})
	}
}

func TestPartyOff(t *testing.T) {
	s, cp, _ := connect(t, "Attic")
	if err := s.PartyOff(context.Background()); err != nil {
		t.Fatalf("PartyOff failed: %v", err)
	}
	if !cp.Speakers["C"].Left {
		t.Error("Attic should have left the group")
	}
	if cp.Speakers["B"].Called("LeaveGroup") {
		t.Error("coordinator must not leave its own group")
	}

	s, cp, _ = connect(t, "Kitchen")
	if err := s.PartyOff(context.Background()); err != nil {
		t.Fatalf("PartyOff failed: %v", err)
	}
	if cp.Speakers["A"].Called("LeaveGroup") {
		t.Error("ungrouped speaker should not be touched")
	}
}

func TestToggle(t *testing.T) {
	s, _, _ := connect(t, "")
	if err := s.Toggle(context.Background()); !errors.Is(err, topology.ErrAmbiguousTarget) {
		t.Fatalf("expected ErrAmbiguousTarget, got %v", err)
	}

	s, cp, out := connect(t, "Kitchen")
	cp.Speakers["A"].State = speaker.StatePlaying
	if err := s.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if cp.Speakers["A"].State != speaker.StatePaused || out.String() != "Speaker now paused.\n" {
		t.Errorf("state = %s, output = %q", cp.Speakers["A"].State, out.String())
	}

	out.Reset()
	if err := s.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if cp.Speakers["A"].State != speaker.StatePlaying || out.String() != "Speaker now playing.\n" {
		t.Errorf("state = %s, output = %q", cp.Speakers["A"].State, out.String())
	}
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr error
	}{
		{"+15", 100, nil},
		{"-200", 0, nil},
		{"-10", 80, nil},
		{"40", 40, nil},
		{"250", 100, nil},
		{"loud", 0, ErrInvalidVolume},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			s, cp, _ := connect(t, "Kitchen")
			cp.Speakers["A"].Vol = 90

			got, err := s.SetVolume(context.Background(), tt.arg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetVolume(%q) error = %v, want %v", tt.arg, err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got != tt.want || cp.Speakers["A"].Vol != tt.want {
				t.Errorf("SetVolume(%q) = %d (speaker %d), want %d", tt.arg, got, cp.Speakers["A"].Vol, tt.want)
			}
		})
	}

	s, _, _ := connect(t, "")
	if _, err := s.SetVolume(context.Background(), "10"); !errors.Is(err, topology.ErrAmbiguousTarget) {
		t.Errorf("expected ErrAmbiguousTarget, got %v", err)
	}
}

func TestReplaceQueue(t *testing.T) {
	jazz := []speaker.Track{
		{Resources: []string{"u1"}},
		{Resources: []string{"u2"}},
		{Resources: []string{"u3"}},
	}

	t.Run("not found", func(t *testing.T) {
		s, _, _ := connect(t, "Kitchen")
		err := s.ReplaceQueue(context.Background(), "Jazz", speaker.PlayModeNormal)
		if !errors.Is(err, ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("in order", func(t *testing.T) {
		s, cp, _ := connect(t, "Kitchen")
		spk := cp.Speakers["A"]
		spk.AddPlaylist("Jazz", jazz...)
		spk.Queue = []string{"old"}

		if err := s.ReplaceQueue(context.Background(), "Jazz", speaker.PlayModeRepeatAll); err != nil {
			t.Fatalf("ReplaceQueue failed: %v", err)
		}
		if strings.Join(spk.Queue, ",") != "u1,u2,u3" {
			t.Errorf("queue = %v", spk.Queue)
		}
		if !spk.Called("PlayFromQueue(0)") {
			t.Errorf("expected play from 0, calls: %v", spk.Calls)
		}
		if spk.Called("QueueSize") {
			t.Error("queue size is only needed when shuffling")
		}
	})

	t.Run("shuffle picks a random start", func(t *testing.T) {
		s, cp, _ := connect(t, "Attic")
		spk := cp.Speakers["B"]
		spk.AddPlaylist("Jazz", jazz...)
		spk.Errors["ClearQueue"] = errors.New("queue already empty")

		var bound int
		s.intn = func(n int) int {
			bound = n
			return n - 1
		}

		if err := s.ReplaceQueue(context.Background(), "Jazz", speaker.PlayModeShuffleNoRepeat); err != nil {
			t.Fatalf("ReplaceQueue failed: %v", err)
		}
		if bound != 3 {
			t.Errorf("random bound = %d, want queue size 3", bound)
		}
		if !spk.Called("PlayFromQueue(2)") {
			t.Errorf("expected play from 2, calls: %v", spk.Calls)
		}
	})
}

func TestSetPlayMode(t *testing.T) {
	s, cp, _ := connect(t, "Den")
	mode, fade := DecodePlayMode("sRF")
	if err := s.SetPlayMode(context.Background(), mode, fade); err != nil {
		t.Fatalf("SetPlayMode failed: %v", err)
	}
	spk := cp.Speakers["B"]
	if spk.Mode != speaker.PlayModeRepeatAll || !spk.Fade {
		t.Errorf("mode = %s, fade = %v", spk.Mode, spk.Fade)
	}

	mode, fade = DecodePlayMode("shuffle")
	if mode != speaker.PlayModeShuffle || fade {
		t.Errorf("fallback = %s/%v, want SHUFFLE/false", mode, fade)
	}

	s, _, _ = connect(t, "")
	if err := s.SetPlayMode(context.Background(), mode, fade); !errors.Is(err, topology.ErrAmbiguousTarget) {
		t.Errorf("expected ErrAmbiguousTarget, got %v", err)
	}
}

func TestExport(t *testing.T) {
	s, cp, out := connect(t, "Kitchen")
	spk := cp.Speakers["A"]
	spk.AddPlaylist("Jazz", speaker.Track{Resources: []string{"u1"}}, speaker.Track{Resources: []string{"u2"}})
	spk.AddPlaylist("Rock", speaker.Track{Resources: []string{"u3"}})
	dir := t.TempDir()

	err := s.Export(context.Background(), ExportOptions{Titles: []string{"Jazz", "Missing", "Jazz"}, Dir: dir})
	if !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
	}
	if out.String() != "Jazz: 2 songs\n" {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "Jazz.xspf")); err != nil {
		t.Errorf("Jazz.xspf not written: %v", err)
	}

	out.Reset()
	err = s.Export(context.Background(), ExportOptions{All: true, Dir: dir})
	if !errors.Is(err, xspf.ErrFileExists) {
		t.Fatalf("expected ErrFileExists for Jazz, got %v", err)
	}
	if out.String() != "Rock: 1 songs\n" {
		t.Errorf("output = %q, the batch should continue after a failure", out.String())
	}

	out.Reset()
	if err := s.Export(context.Background(), ExportOptions{All: true, Dir: dir, Force: true, Mask: xspf.FullMask}); err != nil {
		t.Fatalf("forced export failed: %v", err)
	}
	if out.String() != "Jazz: 2 songs\nRock: 1 songs\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestImport(t *testing.T) {
	s, cp, out := connect(t, "Kitchen")
	dir := t.TempDir()
	good := filepath.Join(dir, "Chill.xspf")
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<playlist version="1" xmlns="http://xspf.org/ns/0/">
 <title>Chill</title>
 <trackList>
  <track><location>x-file-cifs://nas/a.flac</location></track>
 </trackList>
</playlist>
`
	if err := os.WriteFile(good, []byte(doc), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	err := s.Import(context.Background(), []string{filepath.Join(dir, "missing.xspf"), good})
	if !errors.Is(err, xspf.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if out.String() != "Chill: 1 songs imported\n" {
		t.Errorf("output = %q", out.String())
	}
	if _, ok := speaker.FindPlaylist(cp.Speakers["A"].Lists, "Chill"); !ok {
		t.Error("playlist Chill not created")
	}
}
