// Package reader implements the library's paginated, case-insensitive
// listings and detail lookups, scanning the secondary *_by_name tables
// in the lexicographic order their composite keys already encode —
// spec.md §4.D's "no in-memory sort at query time" design.
package reader

import (
	"encoding/json"
	"errors"
	"strings"

	"phonolite/internal/kv"
	"phonolite/internal/library/model"
)

// Reader serves read-only queries against the library index. It holds
// no mutable state of its own beyond the *kv.DB handle.
type Reader struct {
	db *kv.DB
}

func New(db *kv.DB) *Reader {
	return &Reader{db: db}
}

// ErrNotFound is returned by the detail getters when the requested id
// does not exist.
var ErrNotFound = errors.New("reader: not found")

func decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// openTable opens name for reading, downgrading ErrTableNotExist to a
// nil table the caller treats as empty — per spec.md §4.A/§7, a
// missing table on read is "empty", not an error.
func openTable(tx *kv.ReadTx, name kv.Table) (*kv.ReadTable, error) {
	t, err := tx.Table(string(name))
	if err != nil {
		if errors.Is(err, kv.ErrTableNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// GetArtist looks up one artist by id.
func (r *Reader) GetArtist(id string) (model.Artist, error) {
	var out model.Artist
	err := r.db.View(func(tx *kv.ReadTx) error {
		t, err := openTable(tx, kv.TableArtists)
		if err != nil || t == nil {
			return firstNonNil(err, ErrNotFound)
		}
		raw, ok := t.Get([]byte(id))
		if !ok {
			return ErrNotFound
		}
		return decode(raw, &out)
	})
	return out, err
}

// GetAlbum looks up one album by id.
func (r *Reader) GetAlbum(id string) (model.Album, error) {
	var out model.Album
	err := r.db.View(func(tx *kv.ReadTx) error {
		t, err := openTable(tx, kv.TableAlbums)
		if err != nil || t == nil {
			return firstNonNil(err, ErrNotFound)
		}
		raw, ok := t.Get([]byte(id))
		if !ok {
			return ErrNotFound
		}
		return decode(raw, &out)
	})
	return out, err
}

// GetTrack looks up one track by id.
func (r *Reader) GetTrack(id string) (model.Track, error) {
	var out model.Track
	err := r.db.View(func(tx *kv.ReadTx) error {
		t, err := openTable(tx, kv.TableTracks)
		if err != nil || t == nil {
			return firstNonNil(err, ErrNotFound)
		}
		raw, ok := t.Get([]byte(id))
		if !ok {
			return ErrNotFound
		}
		return decode(raw, &out)
	})
	return out, err
}

// GetSeekIndex looks up a track's seek index.
func (r *Reader) GetSeekIndex(trackID string) (model.SeekIndex, error) {
	var out model.SeekIndex
	err := r.db.View(func(tx *kv.ReadTx) error {
		t, err := openTable(tx, kv.TableSeek)
		if err != nil || t == nil {
			return firstNonNil(err, ErrNotFound)
		}
		raw, ok := t.Get([]byte(trackID))
		if !ok {
			return ErrNotFound
		}
		return decode(raw, &out)
	})
	return out, err
}

// GetEmbeddedCover returns the raw bytes and MIME type of a track's
// embedded cover picture, if one was stored during indexing.
func (r *Reader) GetEmbeddedCover(trackID string) (data []byte, mimeType string, err error) {
	var rec struct {
		MIMEType string `json:"mime_type"`
		Data     []byte `json:"data"`
	}
	err = r.db.View(func(tx *kv.ReadTx) error {
		t, err := openTable(tx, kv.TableTrackEmbeddedCov)
		if err != nil || t == nil {
			return firstNonNil(err, ErrNotFound)
		}
		raw, ok := t.Get([]byte(trackID))
		if !ok {
			return ErrNotFound
		}
		return decode(raw, &rec)
	})
	return rec.Data, rec.MIMEType, err
}

// Page is a paginated result set: the items in range plus the total
// count of matching rows (not just those returned).
type Page[T any] struct {
	Items []T
	Total int
}

// ListArtists scans artists_by_name in lexicographic (name, id) order,
// optionally filtering to names containing search (ASCII-lowercased,
// trimmed), per spec.md §4.D / §9's documented ASCII-only case fold.
func (r *Reader) ListArtists(search string, limit, offset int) (Page[model.Artist], error) {
	needle := normalizeSearch(search)
	var page Page[model.Artist]
	err := r.db.View(func(tx *kv.ReadTx) error {
		byName, err := openTable(tx, kv.TableArtistsByName)
		if err != nil || byName == nil {
			return err
		}
		artists, err := openTable(tx, kv.TableArtists)
		if err != nil || artists == nil {
			return err
		}
		idx := 0
		return byName.Range(nil, nil, func(key, id []byte) error {
			name := string(key)
			if i := strings.LastIndex(name, kv.Sep); i >= 0 {
				name = name[:i]
			}
			if needle != "" && !strings.Contains(name, needle) {
				return nil
			}
			page.Total++
			if idx < offset || idx-offset >= limit {
				idx++
				return nil
			}
			idx++
			raw, ok := artists.Get(id)
			if !ok {
				// Soft inconsistency: secondary key with no live
				// primary row. Skipped, not fatal, per spec.md §4.D.
				page.Total--
				return nil
			}
			var a model.Artist
			if err := decode(raw, &a); err != nil {
				return err
			}
			page.Items = append(page.Items, a)
			return nil
		})
	})
	return page, err
}

// ListAlbums scans albums_by_name the same way ListArtists scans
// artists_by_name. search matches anywhere in the composite key,
// which includes the artist name, the year, and the title.
func (r *Reader) ListAlbums(search string, limit, offset int) (Page[model.Album], error) {
	needle := normalizeSearch(search)
	var page Page[model.Album]
	err := r.db.View(func(tx *kv.ReadTx) error {
		byName, err := openTable(tx, kv.TableAlbumsByName)
		if err != nil || byName == nil {
			return err
		}
		albums, err := openTable(tx, kv.TableAlbums)
		if err != nil || albums == nil {
			return err
		}
		idx := 0
		return byName.Range(nil, nil, func(key, id []byte) error {
			if needle != "" && !strings.Contains(string(key), needle) {
				return nil
			}
			page.Total++
			if idx < offset || idx-offset >= limit {
				idx++
				return nil
			}
			idx++
			raw, ok := albums.Get(id)
			if !ok {
				page.Total--
				return nil
			}
			var a model.Album
			if err := decode(raw, &a); err != nil {
				return err
			}
			page.Items = append(page.Items, a)
			return nil
		})
	})
	return page, err
}

// ListTracks scans tracks_by_name the same way. search matches
// anywhere in the composite key (artist, album, disc, track, title).
func (r *Reader) ListTracks(search string, limit, offset int) (Page[model.Track], error) {
	needle := normalizeSearch(search)
	var page Page[model.Track]
	err := r.db.View(func(tx *kv.ReadTx) error {
		byName, err := openTable(tx, kv.TableTracksByName)
		if err != nil || byName == nil {
			return err
		}
		tracks, err := openTable(tx, kv.TableTracks)
		if err != nil || tracks == nil {
			return err
		}
		idx := 0
		return byName.Range(nil, nil, func(key, id []byte) error {
			if needle != "" && !strings.Contains(string(key), needle) {
				return nil
			}
			page.Total++
			if idx < offset || idx-offset >= limit {
				idx++
				return nil
			}
			idx++
			raw, ok := tracks.Get(id)
			if !ok {
				page.Total--
				return nil
			}
			var t model.Track
			if err := decode(raw, &t); err != nil {
				return err
			}
			page.Items = append(page.Items, t)
			return nil
		})
	})
	return page, err
}

// ListArtistAlbums returns every album by artistID in (year, title)
// order, per spec.md §4.D: a prefix range scan over artist_albums.
func (r *Reader) ListArtistAlbums(artistID string) ([]model.Album, error) {
	var out []model.Album
	err := r.db.View(func(tx *kv.ReadTx) error {
		byArtist, err := openTable(tx, kv.TableArtistAlbums)
		if err != nil || byArtist == nil {
			return err
		}
		albums, err := openTable(tx, kv.TableAlbums)
		if err != nil || albums == nil {
			return err
		}
		start, end := kv.PrefixRange(artistID)
		return byArtist.Range(start, end, func(_, id []byte) error {
			raw, ok := albums.Get(id)
			if !ok {
				return nil
			}
			var a model.Album
			if err := decode(raw, &a); err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

// GetAlbumTracks returns every track of albumID in the order the
// indexer assigned, per spec.md §4.D: a prefix range scan over
// album_tracks.
func (r *Reader) GetAlbumTracks(albumID string) ([]model.Track, error) {
	var out []model.Track
	err := r.db.View(func(tx *kv.ReadTx) error {
		albumTracks, err := openTable(tx, kv.TableAlbumTracks)
		if err != nil || albumTracks == nil {
			return err
		}
		tracks, err := openTable(tx, kv.TableTracks)
		if err != nil || tracks == nil {
			return err
		}
		start, end := kv.PrefixRange(albumID)
		return albumTracks.Range(start, end, func(_, id []byte) error {
			raw, ok := tracks.Get(id)
			if !ok {
				return nil
			}
			var t model.Track
			if err := decode(raw, &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

// Stats returns the aggregate entity counts recorded by the most
// recent scan.
func (r *Reader) Stats() (model.Stats, error) {
	var stats model.Stats
	err := r.db.View(func(tx *kv.ReadTx) error {
		meta, err := openTable(tx, kv.TableMeta)
		if err != nil || meta == nil {
			return err
		}
		raw, ok := meta.Get([]byte(kv.MetaKeyStats))
		if !ok {
			return nil
		}
		return decode(raw, &stats)
	})
	return stats, err
}

// TagErrors returns the per-file tag-extraction failures recorded for
// albumID, if any.
func (r *Reader) TagErrors(albumID string) ([]model.TagErrorFile, error) {
	var out []model.TagErrorFile
	err := r.db.View(func(tx *kv.ReadTx) error {
		info, err := openTable(tx, kv.TableTagErrors)
		if err != nil || info == nil {
			return err
		}
		if _, ok := info.Get([]byte(albumID)); !ok {
			return nil
		}
		albums, err := openTable(tx, kv.TableAlbums)
		if err != nil || albums == nil {
			return err
		}
		rawAlbum, ok := albums.Get([]byte(albumID))
		if !ok {
			return nil
		}
		var album model.Album
		if err := decode(rawAlbum, &album); err != nil {
			return err
		}
		files, err := openTable(tx, kv.TableTagErrorFiles)
		if err != nil || files == nil {
			return err
		}
		return files.Range(nil, nil, func(_, raw []byte) error {
			var f model.TagErrorFile
			if err := decode(raw, &f); err != nil {
				return err
			}
			if f.FolderRelpath != album.FolderRelpath {
				return nil
			}
			out = append(out, f)
			return nil
		})
	})
	return out, err
}

func normalizeSearch(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
