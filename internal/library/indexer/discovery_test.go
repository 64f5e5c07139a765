package indexer

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDiscoverAlbumDirsFindsLeafAlbumDirectories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Daft Punk", "Discovery", "01 One More Time.mp3"))
	touch(t, filepath.Join(root, "Daft Punk", "Discovery", "02 Aerodynamic.mp3"))
	touch(t, filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.flac"))

	dirs, err := discoverAlbumDirs(root)
	if err != nil {
		t.Fatalf("discoverAlbumDirs: %v", err)
	}
	want := map[string]bool{
		filepath.Join(root, "Daft Punk", "Discovery"):   true,
		filepath.Join(root, "Radiohead", "OK Computer"): true,
	}
	if len(dirs) != len(want) {
		t.Fatalf("expected %d album dirs, got %v", len(want), dirs)
	}
	for _, d := range dirs {
		if !want[d] {
			t.Errorf("unexpected album dir: %s", d)
		}
	}
}

func TestDiscoverAlbumDirsPromotesDiscFolders(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Artist", "Boxset", "CD1", "01 Song.mp3"))
	touch(t, filepath.Join(root, "Artist", "Boxset", "CD2", "01 Song.mp3"))

	dirs, err := discoverAlbumDirs(root)
	if err != nil {
		t.Fatalf("discoverAlbumDirs: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != filepath.Join(root, "Artist", "Boxset") {
		t.Fatalf("expected disc folders promoted to the boxset dir, got %v", dirs)
	}
}

func TestDiscoverAlbumDirsIgnoresNonAudioFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Artist", "Album", "cover.jpg"))

	dirs, err := discoverAlbumDirs(root)
	if err != nil {
		t.Fatalf("discoverAlbumDirs: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected no album dirs without audio files, got %v", dirs)
	}
}

func TestListAudioFilesDepth2IncludesDiscSubfolders(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "Artist", "Boxset")
	touch(t, filepath.Join(album, "CD1", "01 Song.mp3"))
	touch(t, filepath.Join(album, "CD2", "01 Song.mp3"))
	touch(t, filepath.Join(album, "booklet.pdf"))

	files, err := listAudioFilesDepth2(album)
	if err != nil {
		t.Fatalf("listAudioFilesDepth2: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 audio files, got %v", files)
	}
}

func TestLeafFilterDropsAncestorsOfNestedAlbumDirs(t *testing.T) {
	dirs := []string{
		filepath.Join("root", "a"),
		filepath.Join("root", "a", "b"),
	}
	got := leafFilter(dirs)
	if len(got) != 1 || got[0] != filepath.Join("root", "a", "b") {
		t.Fatalf("expected only the nested leaf to survive, got %v", got)
	}
}
