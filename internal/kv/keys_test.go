package kv

import (
	"bytes"
	"testing"
)

func u16(v uint16) *uint16 { return &v }
func i32(v int32) *int32   { return &v }

func TestYear4AbsentSortsLast(t *testing.T) {
	if got := Year4(nil); got != "9999" {
		t.Fatalf("expected absent year to encode as 9999, got %q", got)
	}
	if got := Year4(i32(1973)); got != "1973" {
		t.Fatalf("expected 1973, got %q", got)
	}
}

func TestDisc5Track5AbsentSortsLast(t *testing.T) {
	if got := Disc5(nil); got != "65535" {
		t.Fatalf("expected absent disc to encode as 65535, got %q", got)
	}
	if got := Track5(u16(3)); got != "00003" {
		t.Fatalf("expected 00003, got %q", got)
	}
}

func TestOrder8ZeroPads(t *testing.T) {
	if got := Order8(7); got != "00000007" {
		t.Fatalf("expected 00000007, got %q", got)
	}
}

// TestAlbumsByNameKeySortsByArtistThenYearThenTitle verifies the
// composite key orders lexicographically the way the reader's range
// scans assume, with no in-memory sort required.
func TestAlbumsByNameKeySortsByArtistThenYearThenTitle(t *testing.T) {
	k1 := AlbumsByNameKey("Daft Punk", i32(2001), "Discovery", "id1")
	k2 := AlbumsByNameKey("Daft Punk", i32(2013), "Random Access Memories", "id2")
	k3 := AlbumsByNameKey("Radiohead", i32(1997), "OK Computer", "id3")

	if bytes.Compare(k1, k2) >= 0 {
		t.Fatalf("expected %q < %q", k1, k2)
	}
	if bytes.Compare(k2, k3) >= 0 {
		t.Fatalf("expected %q < %q", k2, k3)
	}
}

func TestAlbumsByNameKeyLowercasesArtistAndTitle(t *testing.T) {
	upper := AlbumsByNameKey("DAFT PUNK", i32(2001), "DISCOVERY", "id1")
	lower := AlbumsByNameKey("daft punk", i32(2001), "discovery", "id1")
	if !bytes.Equal(upper, lower) {
		t.Fatalf("expected case-insensitive key, got %q vs %q", upper, lower)
	}
}

func TestPrefixRangeBoundsExactPrefix(t *testing.T) {
	start, end := PrefixRange("album-1")
	within := AlbumTracksKey("album-1", 0, "track-a")
	other := AlbumTracksKey("album-10", 0, "track-b")

	if bytes.Compare(within, start) < 0 || bytes.Compare(within, end) >= 0 {
		t.Fatalf("expected %q within [%q, %q)", within, start, end)
	}
	if bytes.Compare(other, start) >= 0 && bytes.Compare(other, end) < 0 {
		t.Fatalf("expected %q NOT within [%q, %q) (prefix must not bleed into album-10)", other, start, end)
	}
}

func TestTracksByNameKeyOrdersByDiscThenTrack(t *testing.T) {
	k1 := TracksByNameKey("Artist", "Album", u16(1), u16(2), "Second Song", "t1")
	k2 := TracksByNameKey("Artist", "Album", u16(1), u16(10), "Tenth Song", "t2")
	k3 := TracksByNameKey("Artist", "Album", u16(2), u16(1), "First Disc Two", "t3")

	if bytes.Compare(k1, k2) >= 0 {
		t.Fatalf("expected disc1/track2 to sort before disc1/track10, got %q >= %q", k1, k2)
	}
	if bytes.Compare(k2, k3) >= 0 {
		t.Fatalf("expected disc1 to sort before disc2, got %q >= %q", k2, k3)
	}
}

func TestExternalAttemptKeyDistinguishesKind(t *testing.T) {
	a := ExternalAttemptKey("artist", "x")
	b := ExternalAttemptKey("album", "x")
	if bytes.Equal(a, b) {
		t.Fatal("expected artist and album attempt keys for the same id to differ")
	}
}
