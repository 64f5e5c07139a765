package quicsession

import "testing"

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnsureFrontInsertsWhenAbsent(t *testing.T) {
	q := []string{"b", "c"}
	ensureFront(&q, "a")
	if !equalSlices(q, []string{"a", "b", "c"}) {
		t.Fatalf("got %v", q)
	}
}

func TestEnsureFrontMovesExistingEntryToFront(t *testing.T) {
	q := []string{"a", "b", "c"}
	ensureFront(&q, "c")
	if !equalSlices(q, []string{"c", "a", "b"}) {
		t.Fatalf("got %v", q)
	}
}

func TestEnsureFrontNoOpWhenAlreadyFront(t *testing.T) {
	q := []string{"a", "b", "c"}
	ensureFront(&q, "a")
	if !equalSlices(q, []string{"a", "b", "c"}) {
		t.Fatalf("got %v", q)
	}
}

func TestSuccessorReturnsNextEntry(t *testing.T) {
	q := []string{"a", "b", "c"}
	if got := successor(q, "a"); got != "b" {
		t.Fatalf("successor = %q, want b", got)
	}
	if got := successor(q, "c"); got != "" {
		t.Fatalf("expected empty successor for the last entry, got %q", got)
	}
	if got := successor(q, "missing"); got != "" {
		t.Fatalf("expected empty successor when active is absent, got %q", got)
	}
}

func TestAfterTrackReturnsUpToNEntries(t *testing.T) {
	q := []string{"a", "b", "c", "d", "e"}
	got := afterTrack(q, "b", 2)
	if !equalSlices(got, []string{"c", "d"}) {
		t.Fatalf("got %v", got)
	}
}

func TestAfterTrackTruncatesAtQueueEnd(t *testing.T) {
	q := []string{"a", "b", "c"}
	got := afterTrack(q, "b", 5)
	if !equalSlices(got, []string{"c"}) {
		t.Fatalf("got %v", got)
	}
}

func TestAfterTrackReturnsNilWhenActiveIsLast(t *testing.T) {
	q := []string{"a", "b"}
	got := afterTrack(q, "b", 2)
	if len(got) != 0 {
		t.Fatalf("expected no entries after the last track, got %v", got)
	}
}

func TestPruneDeadStreamsLockedRemovesUnqueuedTracks(t *testing.T) {
	s := newTestSession()
	s.activeTrack = "t1"
	s.queue = []string{"t1", "t2"}

	s.outgoing[3] = &OutgoingStream{streamID: 3, trackID: "t1"}
	s.outgoing[7] = &OutgoingStream{streamID: 7, trackID: "t2"}
	s.outgoing[11] = &OutgoingStream{streamID: 11, trackID: "stale"}
	s.trackStreams["t1"] = 3
	s.trackStreams["t2"] = 7
	s.trackStreams["stale"] = 11

	s.pruneDeadStreamsLocked()

	if _, ok := s.outgoing[11]; ok {
		t.Fatal("expected the stale track's stream to be pruned")
	}
	if _, ok := s.trackStreams["stale"]; ok {
		t.Fatal("expected the stale track to be removed from trackStreams")
	}
	if _, ok := s.outgoing[3]; !ok {
		t.Fatal("expected the active track's stream to survive pruning")
	}
	if _, ok := s.outgoing[7]; !ok {
		t.Fatal("expected the queued track's stream to survive pruning")
	}
}
