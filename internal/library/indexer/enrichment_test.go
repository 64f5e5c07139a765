package indexer

import (
	"path/filepath"
	"testing"

	"phonolite/internal/kv"
	"phonolite/internal/library/model"
)

func openTestDB(t *testing.T) *kv.DB {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "index.bbolt"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedArtist(t *testing.T, db *kv.DB, a model.Artist) {
	t.Helper()
	err := db.Update(func(tx *kv.WriteTx) error {
		return putArtist(tx, a, nil)
	})
	if err != nil {
		t.Fatalf("seed artist: %v", err)
	}
}

func TestUpdateArtistEnrichmentUnionMergesGenresByDefault(t *testing.T) {
	db := openTestDB(t)
	seedArtist(t, db, model.Artist{ID: "a1", Name: "Daft Punk", Genres: []string{"Electronic"}})
	ix := New(db, "/music", nil)

	changed, err := ix.UpdateArtistEnrichment("a1", nil, []string{"House", "electronic"}, nil, nil, false)
	if err != nil {
		t.Fatalf("UpdateArtistEnrichment: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true when a new genre is added")
	}

	got, found, err := getArtistForTest(t, db, "a1")
	if err != nil || !found {
		t.Fatalf("getArtist: found=%v err=%v", found, err)
	}
	if len(got.Genres) != 2 {
		t.Fatalf("expected union merge to yield 2 genres, got %v", got.Genres)
	}
}

func TestUpdateArtistEnrichmentReplaceOverwritesGenres(t *testing.T) {
	db := openTestDB(t)
	seedArtist(t, db, model.Artist{ID: "a1", Name: "Daft Punk", Genres: []string{"Electronic", "House"}})
	ix := New(db, "/music", nil)

	changed, err := ix.UpdateArtistEnrichment("a1", nil, []string{"Funk"}, nil, nil, true)
	if err != nil {
		t.Fatalf("UpdateArtistEnrichment: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true")
	}

	got, _, err := getArtistForTest(t, db, "a1")
	if err != nil {
		t.Fatalf("getArtist: %v", err)
	}
	if len(got.Genres) != 1 || got.Genres[0] != "Funk" {
		t.Fatalf("expected genres replaced with [Funk], got %v", got.Genres)
	}
}

func TestUpdateArtistEnrichmentSummaryOnlyOverwritesWhenEmptyOrReplace(t *testing.T) {
	db := openTestDB(t)
	seedArtist(t, db, model.Artist{ID: "a1", Name: "Daft Punk", Summary: "existing bio"})
	ix := New(db, "/music", nil)

	newSummary := "new bio"
	changed, err := ix.UpdateArtistEnrichment("a1", &newSummary, nil, nil, nil, false)
	if err != nil {
		t.Fatalf("UpdateArtistEnrichment: %v", err)
	}
	if changed {
		t.Fatal("expected no change: existing non-empty summary should not be overwritten without replace")
	}

	changed, err = ix.UpdateArtistEnrichment("a1", &newSummary, nil, nil, nil, true)
	if err != nil {
		t.Fatalf("UpdateArtistEnrichment (replace): %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true when replace=true")
	}
	got, _, _ := getArtistForTest(t, db, "a1")
	if got.Summary != "new bio" {
		t.Fatalf("expected summary replaced, got %q", got.Summary)
	}
}

func TestUpdateArtistEnrichmentUnknownArtistReturnsError(t *testing.T) {
	db := openTestDB(t)
	ix := New(db, "/music", nil)

	_, err := ix.UpdateArtistEnrichment("missing", nil, nil, nil, nil, false)
	if err == nil {
		t.Fatal("expected an error for an unknown artist id")
	}
}

func getArtistForTest(t *testing.T, db *kv.DB, id string) (model.Artist, bool, error) {
	t.Helper()
	var a model.Artist
	found := false
	err := db.Update(func(tx *kv.WriteTx) error {
		var innerErr error
		a, found, innerErr = getArtist(tx, id)
		return innerErr
	})
	return a, found, err
}

func TestBuildSeekIndexFixedEndpointsAndInterpolation(t *testing.T) {
	idx := buildSeekIndex(12000, 1_200_000)
	if len(idx.Points) == 0 {
		t.Fatal("expected seek points")
	}
	first := idx.Points[0]
	if first.TMs != 0 || first.Byte != 0 {
		t.Fatalf("expected first point (0,0), got %+v", first)
	}
	last := idx.Points[len(idx.Points)-1]
	if last.TMs != 12000 || last.Byte != 1_200_000-1 {
		t.Fatalf("expected last point (12000, filesize-1), got %+v", last)
	}
	for i := 1; i < len(idx.Points)-1; i++ {
		if idx.Points[i].TMs%5000 != 0 {
			t.Fatalf("expected interior points every 5000ms, got %+v", idx.Points[i])
		}
	}
}

func TestBuildSeekIndexSkippedWhenDurationOrSizeIsZero(t *testing.T) {
	if idx := buildSeekIndex(0, 1000); len(idx.Points) != 0 {
		t.Fatalf("expected no points when duration is 0, got %v", idx.Points)
	}
	if idx := buildSeekIndex(1000, 0); len(idx.Points) != 0 {
		t.Fatalf("expected no points when file size is 0, got %v", idx.Points)
	}
}
