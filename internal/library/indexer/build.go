package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"phonolite/internal/idgen"
	"phonolite/internal/library/model"
	"phonolite/internal/tagreader"
)

// trackBuild is the intermediate per-track state produced while
// scanning one album directory, before the final sort assigns its
// album_tracks order.
type trackBuild struct {
	track     model.Track
	seek      model.SeekIndex
	coverData *tagreader.Picture
}

// albumBuild is everything derived from one album directory, ready to
// be merged into the index.
type albumBuild struct {
	albumID       string
	artistID      string
	artistName    string
	artistSidecar sidecarInfo
	album         model.Album
	tracks        []trackBuild
	tagErrorFiles []model.TagErrorFile
}

// buildAlbum implements spec.md §4.C's per-album pass (steps 1-11) for
// a single album directory. It performs no I/O against the index; the
// caller decides whether/how to merge the result in.
func buildAlbum(ctx context.Context, musicRoot, dir string) (*albumBuild, error) {
	files, err := listAudioFilesDepth2(dir)
	if err != nil {
		return nil, fmt.Errorf("indexer: list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	folderRelpath := relpath(musicRoot, dir)
	albumID := idgen.AlbumID(folderRelpath)

	folderTitle, folderYear := parseFolderYear(filepath.Base(dir))

	var albumSidecar sidecarInfo
	if s, ok := readSidecar(filepath.Join(dir, "album.json")); ok {
		albumSidecar = s
	}
	var artistSidecar sidecarInfo
	if s, ok := readSidecar(filepath.Join(filepath.Dir(dir), "artist.json")); ok {
		artistSidecar = s
	}

	var (
		albumTitle, albumArtist, albumSummary string
		albumYear                             *int32
		albumGenres                           []string
		tagErrorFiles                         []model.TagErrorFile
		builds                                []trackBuild
	)
	albumGenres = mergeGenres(albumGenres, albumSidecar.Genres)
	albumSummary = albumSidecar.Summary

	for _, file := range files {
		fileRelpath := relpath(musicRoot, file)
		info, err := tagreader.Read(ctx, file)
		if err != nil {
			tagErrorFiles = append(tagErrorFiles, model.TagErrorFile{
				FileRelpath:   fileRelpath,
				FolderRelpath: folderRelpath,
				Error:         err.Error(),
			})
		}

		if albumTitle == "" {
			if info.Album != "" {
				albumTitle = info.Album
			}
		}
		if albumArtist == "" {
			if info.AlbumArtist != "" {
				albumArtist = info.AlbumArtist
			} else if info.Artist != "" {
				albumArtist = info.Artist
			}
		}
		if albumYear == nil && info.Year != nil {
			albumYear = info.Year
		}
		albumGenres = mergeGenres(albumGenres, info.Genres)

		fi, statErr := os.Stat(file)
		var fileSize uint64
		if statErr == nil {
			fileSize = uint64(fi.Size())
		}

		trackID := idgen.TrackID(fileRelpath)
		title := info.Title
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}

		codec := model.CodecMP3
		if strings.EqualFold(filepath.Ext(file), ".flac") {
			codec = model.CodecFLAC
		}

		discNo := info.DiscNo
		if discNo == nil {
			if d, ok := discFromAncestors(musicRoot, dir, file); ok {
				discNo = &d
			}
		}

		tr := model.Track{
			ID:          trackID,
			Title:       title,
			TrackNo:     info.TrackNo,
			DiscNo:      discNo,
			DurationMs:  info.DurationMs,
			Codec:       codec,
			SampleRate:  info.SampleRate,
			Channels:    info.Channels,
			Bitrate:     info.Bitrate,
			FileRelpath: fileRelpath,
			FileSize:    fileSize,
			Genres:      info.Genres,
		}

		builds = append(builds, trackBuild{
			track:     tr,
			seek:      buildSeekIndex(info.DurationMs, fileSize),
			coverData: info.CoverPicture,
		})
	}

	if folderTitle != "" && albumTitle == "" {
		albumTitle = folderTitle
	}
	if albumTitle == "" {
		albumTitle = filepath.Base(dir)
	}
	if albumYear == nil {
		albumYear = folderYear
	}

	fallbackArtist := "Unknown Artist"
	if parent := filepath.Dir(dir); parent != musicRoot && parent != "." {
		fallbackArtist = filepath.Base(parent)
	}
	if albumArtist == "" {
		albumArtist = fallbackArtist
	}
	artistID := idgen.ArtistID(albumArtist)

	sortTracks(builds)
	for i := range builds {
		builds[i].track.AlbumID = albumID
		builds[i].track.ArtistID = artistID
	}

	coverRef := resolveCoverRef(dir, builds)

	album := model.Album{
		ID:            albumID,
		ArtistID:      artistID,
		Title:         albumTitle,
		Year:          albumYear,
		FolderRelpath: folderRelpath,
		CoverRef:      coverRef,
		Genres:        albumGenres,
		Summary:       albumSummary,
	}

	return &albumBuild{
		albumID:       albumID,
		artistID:      artistID,
		artistName:    albumArtist,
		artistSidecar: artistSidecar,
		album:         album,
		tracks:        builds,
		tagErrorFiles: tagErrorFiles,
	}, nil
}

// resolveCoverRef implements spec.md §4.C step 7: first the first
// track's embedded cover, else a folder cover file in priority order.
func resolveCoverRef(dir string, builds []trackBuild) model.CoverRef {
	if len(builds) > 0 && builds[0].coverData != nil {
		return model.CoverRef{Kind: model.CoverRefEmbedded, TrackID: builds[0].track.ID}
	}
	if rel := findFolderCover(dir); rel != "" {
		return model.CoverRef{Kind: model.CoverRefFile, Relpath: rel}
	}
	return model.CoverRef{}
}

// discFromAncestors implements spec.md §4.C step 10's fallback: scan
// ancestor directory names between file and the album dir for a
// disc-folder pattern.
func discFromAncestors(musicRoot, albumDir, file string) (uint16, bool) {
	dir := filepath.Dir(file)
	for dir != albumDir && dir != musicRoot && dir != "." {
		if n, ok := discNumber(filepath.Base(dir)); ok {
			return n, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return 0, false
}

// sortTracks implements spec.md §4.C step 11:
// (disc_no ?? MAX, track_no ?? MAX, lowercase(title), relpath).
func sortTracks(builds []trackBuild) {
	sort.SliceStable(builds, func(i, j int) bool {
		di, dj := u16OrMax(builds[i].track.DiscNo), u16OrMax(builds[j].track.DiscNo)
		if di != dj {
			return di < dj
		}
		ti, tj := u16OrMax(builds[i].track.TrackNo), u16OrMax(builds[j].track.TrackNo)
		if ti != tj {
			return ti < tj
		}
		li, lj := strings.ToLower(builds[i].track.Title), strings.ToLower(builds[j].track.Title)
		if li != lj {
			return li < lj
		}
		return builds[i].track.FileRelpath < builds[j].track.FileRelpath
	})
}

func u16OrMax(v *uint16) uint16 {
	if v == nil {
		return 65535
	}
	return *v
}
