package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"phonolite/internal/kv"
)

func TestRunFullScanIsIdempotent(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Daft Punk", "Discovery", "01 One More Time.mp3"))
	touch(t, filepath.Join(root, "Daft Punk", "Discovery", "02 Aerodynamic.mp3"))
	touch(t, filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.flac"))

	db := openTestDB(t)
	ix := New(db, root, nil)

	first, err := ix.RunFullScan(context.Background())
	if err != nil {
		t.Fatalf("first RunFullScan: %v", err)
	}
	if first.AlbumsSeen != 2 {
		t.Fatalf("expected 2 albums on first scan, got %d", first.AlbumsSeen)
	}
	if first.TracksSeen != 3 {
		t.Fatalf("expected 3 tracks on first scan, got %d", first.TracksSeen)
	}

	second, err := ix.RunFullScan(context.Background())
	if err != nil {
		t.Fatalf("second RunFullScan: %v", err)
	}
	if second.AlbumsSeen != first.AlbumsSeen || second.TracksSeen != first.TracksSeen {
		t.Fatalf("expected a rerun over an unchanged tree to see the same counts: first=%+v second=%+v", first, second)
	}

	report, found, err := ix.LastScanReport()
	if err != nil || !found {
		t.Fatalf("LastScanReport: found=%v err=%v", found, err)
	}
	if report.AlbumsSeen != second.AlbumsSeen {
		t.Fatalf("expected LastScanReport to reflect the most recent scan, got %+v", report)
	}
}

func TestRunFullScanProducesStableAlbumIDsAcrossRuns(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Daft Punk", "Discovery", "01 One More Time.mp3"))

	db := openTestDB(t)
	ix := New(db, root, nil)

	if _, err := ix.RunFullScan(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	var firstIDs []string
	err := db.View(func(tx *kv.ReadTx) error {
		albums, err := tx.Table(string(kv.TableAlbums))
		if err != nil {
			return err
		}
		return albums.Range(nil, nil, func(k, _ []byte) error {
			firstIDs = append(firstIDs, string(k))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("read albums after first scan: %v", err)
	}

	if _, err := ix.RunFullScan(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	var secondIDs []string
	err = db.View(func(tx *kv.ReadTx) error {
		albums, err := tx.Table(string(kv.TableAlbums))
		if err != nil {
			return err
		}
		return albums.Range(nil, nil, func(k, _ []byte) error {
			secondIDs = append(secondIDs, string(k))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("read albums after second scan: %v", err)
	}

	if len(firstIDs) != 1 || len(secondIDs) != 1 || firstIDs[0] != secondIDs[0] {
		t.Fatalf("expected the same album id across runs, got %v then %v", firstIDs, secondIDs)
	}
}

func TestRunIncrementalScanSkipsAlreadyIndexedAlbums(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Daft Punk", "Discovery", "01 One More Time.mp3"))

	db := openTestDB(t)
	ix := New(db, root, nil)

	if _, err := ix.RunFullScan(context.Background()); err != nil {
		t.Fatalf("initial full scan: %v", err)
	}

	unchanged, err := ix.RunIncrementalScan(context.Background())
	if err != nil {
		t.Fatalf("incremental scan over an unchanged tree: %v", err)
	}
	if unchanged.AlbumsSeen != 0 {
		t.Fatalf("expected the incremental scan to skip the already-indexed album, got AlbumsSeen=%d", unchanged.AlbumsSeen)
	}

	touch(t, filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.flac"))
	withNewAlbum, err := ix.RunIncrementalScan(context.Background())
	if err != nil {
		t.Fatalf("incremental scan after adding an album: %v", err)
	}
	if withNewAlbum.AlbumsSeen != 1 {
		t.Fatalf("expected the incremental scan to pick up exactly the new album, got AlbumsSeen=%d", withNewAlbum.AlbumsSeen)
	}

	var albumCount int
	err = db.View(func(tx *kv.ReadTx) error {
		tbl, err := tx.Table(string(kv.TableAlbums))
		if err != nil {
			return err
		}
		return tbl.Range(nil, nil, func(_, _ []byte) error {
			albumCount++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("read albums: %v", err)
	}
	if albumCount != 2 {
		t.Fatalf("expected both albums present after the incremental scan, got %d", albumCount)
	}
}
