package quicsession

import (
	"path/filepath"
	"testing"

	"phonolite/internal/library/model"
	"phonolite/internal/transcode"
)

func TestParseMode(t *testing.T) {
	if parseMode("fixed") != transcode.ModeFixed {
		t.Fatal(`expected "fixed" to parse as ModeFixed`)
	}
	if parseMode("auto") != transcode.ModeAuto {
		t.Fatal(`expected "auto" to parse as ModeAuto`)
	}
	if parseMode("") != transcode.ModeAuto {
		t.Fatal("expected an unrecognized mode to default to ModeAuto")
	}
}

func TestParseQuality(t *testing.T) {
	if parseQuality("low") != transcode.QualityLow {
		t.Fatal(`expected "low" to parse as QualityLow`)
	}
	if parseQuality("high") != transcode.QualityHigh {
		t.Fatal(`expected "high" to parse as QualityHigh`)
	}
	if parseQuality("medium") != transcode.QualityMedium {
		t.Fatal(`expected "medium" to parse as QualityMedium`)
	}
	if parseQuality("") != transcode.QualityMedium {
		t.Fatal("expected an unrecognized quality to default to QualityMedium")
	}
}

func TestTrackFilePathJoinsMusicRootAndRelpath(t *testing.T) {
	s := &Session{musicRoot: "/music"}
	track := model.Track{FileRelpath: "Artist/Album/01 Song.mp3"}
	want := filepath.Join("/music", "Artist", "Album", "01 Song.mp3")
	if got := s.trackFilePath(track); got != want {
		t.Fatalf("trackFilePath = %q, want %q", got, want)
	}
}

func newTestSession() *Session {
	return &Session{
		outgoing:     make(map[uint64]*OutgoingStream),
		trackStreams: make(map[string]uint64),
	}
}

func TestFinishStreamKeepsActiveStreamOfActiveTrackOpen(t *testing.T) {
	s := newTestSession()
	o := &OutgoingStream{streamID: 3, trackID: "track1", role: RoleActive}
	s.outgoing[o.streamID] = o

	s.finishStream(o, "track1")
	if _, ok := s.outgoing[3]; !ok {
		t.Fatal("expected the active stream of the active track to remain open")
	}
}

func TestFinishStreamRemovesStreamOfInactiveTrack(t *testing.T) {
	s := newTestSession()
	o := &OutgoingStream{streamID: 3, trackID: "track1", role: RoleActive}
	s.outgoing[o.streamID] = o

	s.finishStream(o, "track2")
	if _, ok := s.outgoing[3]; ok {
		t.Fatal("expected the stream to be removed once its track is no longer active")
	}
}

func TestFinishStreamRemovesPrefetchStreamRegardlessOfActiveTrack(t *testing.T) {
	s := newTestSession()
	o := &OutgoingStream{streamID: 7, trackID: "track1", role: RolePrefetch}
	s.outgoing[o.streamID] = o

	s.finishStream(o, "track1")
	if _, ok := s.outgoing[7]; ok {
		t.Fatal("expected a prefetch stream to be removed even for the active track")
	}
}
