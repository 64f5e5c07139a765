package indexer

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// isAudioExt reports whether ext (with or without leading dot) is one
// of the two codecs this index understands.
func isAudioExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".mp3" || ext == ".flac"
}

// discoverAlbumDirs walks root and returns the sorted set of album
// directories per spec.md §4.C steps 1-3: directories containing at
// least one audio file, filtered down to leaves of the audio subtree,
// then promoted past recognized disc folders.
func discoverAlbumDirs(root string) ([]string, error) {
	hasAudio := map[string]bool{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isAudioExt(d.Name()) {
			hasAudio[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(hasAudio))
	for d := range hasAudio {
		dirs = append(dirs, d)
	}

	dirs = leafFilter(dirs)
	dirs = promoteDiscFolders(dirs, root)

	sort.Strings(dirs)
	return dirs, nil
}

// leafFilter removes any directory in dirs that has another directory
// in dirs nested below it, leaving only leaves of the audio subtree.
func leafFilter(dirs []string) []string {
	set := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		set[d] = true
	}

	isAncestor := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		for p := filepath.Dir(d); p != d && p != "." && p != string(filepath.Separator); p = filepath.Dir(p) {
			if set[p] {
				isAncestor[p] = true
				break
			}
			next := filepath.Dir(p)
			if next == p {
				break
			}
		}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if !isAncestor[d] {
			out = append(out, d)
		}
	}
	return out
}

// promoteDiscFolders implements spec.md §4.C step 3: for any parent
// directory not itself in dirs whose every child in dirs is a
// recognized disc folder, replace those children with the parent. A
// child survives (is not promoted) if its parent is root itself.
func promoteDiscFolders(dirs []string, root string) []string {
	set := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		set[d] = true
	}

	byParent := map[string][]string{}
	for _, d := range dirs {
		parent := filepath.Dir(d)
		byParent[parent] = append(byParent[parent], d)
	}

	rootClean := filepath.Clean(root)
	promoted := map[string]bool{}
	result := make([]string, 0, len(dirs))

	for parent, children := range byParent {
		if set[parent] {
			// Parent is itself an album dir; nothing to promote into.
			result = append(result, children...)
			continue
		}
		if filepath.Clean(parent) == rootClean {
			// Root is never promoted; children survive as-is.
			result = append(result, children...)
			continue
		}
		allDisc := true
		for _, c := range children {
			if !isDiscFolderName(filepath.Base(c)) {
				allDisc = false
				break
			}
		}
		if allDisc && len(children) > 0 {
			if !promoted[parent] {
				promoted[parent] = true
				result = append(result, parent)
			}
		} else {
			result = append(result, children...)
		}
	}

	return dedupe(result)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// listAudioFilesDepth2 returns, sorted lexicographically, every audio
// file at depth <= 2 inside dir (the album directory itself and its
// immediate disc-folder subdirectories).
func listAudioFilesDepth2(dir string) ([]string, error) {
	var out []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if !e.IsDir() {
			if isAudioExt(e.Name()) {
				out = append(out, full)
			}
			continue
		}
		sub, err := os.ReadDir(full)
		if err != nil {
			continue
		}
		for _, se := range sub {
			if se.IsDir() {
				continue
			}
			if isAudioExt(se.Name()) {
				out = append(out, filepath.Join(full, se.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
