package indexer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var yearSuffix = regexp.MustCompile(`^(.*?)\s*[\(\[](\d{4})[\)\]]\s*$`)

// parseFolderYear splits a trailing "(YYYY)" or "[YYYY]" suffix off an
// album folder name, returning the remaining title and the parsed
// year if present.
func parseFolderYear(folderName string) (title string, year *int32) {
	m := yearSuffix.FindStringSubmatch(folderName)
	if m == nil {
		return folderName, nil
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return folderName, nil
	}
	y := int32(n)
	return strings.TrimSpace(m[1]), &y
}

// sidecarInfo is the shape of album.json / artist.json.
type sidecarInfo struct {
	Summary string   `json:"summary"`
	Genres  []string `json:"genres"`
}

func readSidecar(path string) (sidecarInfo, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sidecarInfo{}, false
	}
	var s sidecarInfo
	if err := json.Unmarshal(data, &s); err != nil {
		return sidecarInfo{}, false
	}
	return s, true
}

// coverFileStems and coverFileExts list, in priority order, the case-insensitive
// folder cover filenames spec.md §4.C step 7 recognizes.
var coverFileStems = []string{"cover", "folder", "front", "album"}
var coverFileExts = map[string][]string{
	"cover":  {"jpg", "jpeg", "png"},
	"folder": {"jpg", "jpeg", "png"},
	"front":  {"jpg", "jpeg", "png"},
	"album":  {"jpg", "png"},
}

// findFolderCover returns the relpath (within dir) of the first
// matching folder cover file, checked in priority order, or "" if
// none exists.
func findFolderCover(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	byLower := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		byLower[strings.ToLower(e.Name())] = e.Name()
	}

	for _, stem := range coverFileStems {
		for _, ext := range coverFileExts[stem] {
			name := stem + "." + ext
			if actual, ok := byLower[name]; ok {
				return actual
			}
		}
	}
	return ""
}

func mergeGenres(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, g := range list {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			key := strings.ToLower(g)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, g)
		}
	}
	return out
}

func relpath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
