package quality

import (
	"testing"
	"time"
)

func TestDownshiftOnLowBuffer(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewSession(start)

	if lvl := s.Report(start, 1500); lvl != High {
		t.Fatalf("expected no downshift before cooldown elapses, got %v", lvl)
	}

	t5 := start.Add(5 * time.Second)
	if lvl := s.Report(t5, 1500); lvl != Medium {
		t.Fatalf("expected Medium at t=5s, got %v", lvl)
	}

	t10 := start.Add(10 * time.Second)
	if lvl := s.Report(t10, 1500); lvl != Low {
		t.Fatalf("expected Low at t=10s, got %v", lvl)
	}
	if got := s.SharedBitrate.Load(); got != Bitrate(Low) {
		t.Fatalf("expected shared bitrate %d, got %d", Bitrate(Low), got)
	}
}

func TestUpshiftAfterSustainedHighBuffer(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewSession(start)
	// Force down to Low first so an upshift is observable.
	s.Report(start, 1500)
	s.Report(start.Add(5*time.Second), 1500)
	s.Report(start.Add(10*time.Second), 1500)
	if s.Current() != Low {
		t.Fatalf("setup: expected Low, got %v", s.Current())
	}

	base := start.Add(10 * time.Second)
	s.Report(base, 9000) // high_since := base

	// Before 4s-since-last-change and 8s-since-high_since both elapse,
	// no upshift.
	if lvl := s.Report(base.Add(2*time.Second), 9000); lvl != Low {
		t.Fatalf("expected no upshift yet, got %v", lvl)
	}

	after := base.Add(8 * time.Second)
	if lvl := s.Report(after, 9000); lvl != Medium {
		t.Fatalf("expected Medium after 8s sustained high buffer, got %v", lvl)
	}
}

func TestIdleSessionIsGarbageCollectible(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewSession(start)
	if s.Idle(start.Add(89 * time.Second)) {
		t.Fatal("session should not be idle before 90s")
	}
	if !s.Idle(start.Add(90 * time.Second)) {
		t.Fatal("session should be idle at 90s")
	}
}

func TestManagerGetCreatesAndReuses(t *testing.T) {
	m := NewManager()
	defer m.Close()
	now := time.Unix(0, 0)
	a := m.Get("sess1", now)
	b := m.Get("sess1", now)
	if a != b {
		t.Fatal("expected the same session instance for the same id")
	}
	m.Remove("sess1")
	c := m.Get("sess1", now)
	if c == a {
		t.Fatal("expected a fresh session after removal")
	}
}
