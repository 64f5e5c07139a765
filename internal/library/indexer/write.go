package indexer

import (
	"encoding/json"
	"fmt"

	"phonolite/internal/kv"
	"phonolite/internal/library/model"
	"phonolite/internal/tagreader"
)

func encode(v any) ([]byte, error) { return json.Marshal(v) }

func decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// getArtist looks up an existing artist record by id, if any.
func getArtist(tx *kv.WriteTx, id string) (model.Artist, bool, error) {
	t, err := tx.Table(string(kv.TableArtists))
	if err != nil {
		return model.Artist{}, false, err
	}
	raw, ok := t.Get([]byte(id))
	if !ok {
		return model.Artist{}, false, nil
	}
	var a model.Artist
	if err := decode(raw, &a); err != nil {
		return model.Artist{}, false, fmt.Errorf("indexer: decode artist %s: %w", id, err)
	}
	return a, true, nil
}

// putArtist writes the artist's primary record and its name index. If
// prior is non-nil and its name differs, the stale name-index entry is
// removed first.
func putArtist(tx *kv.WriteTx, a model.Artist, prior *model.Artist) error {
	artists, err := tx.Table(string(kv.TableArtists))
	if err != nil {
		return err
	}
	byName, err := tx.Table(string(kv.TableArtistsByName))
	if err != nil {
		return err
	}

	if prior != nil && prior.Name != a.Name {
		if _, _, err := byName.Remove(kv.ArtistsByNameKey(prior.Name, a.ID)); err != nil {
			return err
		}
	}

	raw, err := encode(a)
	if err != nil {
		return fmt.Errorf("indexer: encode artist %s: %w", a.ID, err)
	}
	if _, _, err := artists.Insert([]byte(a.ID), raw); err != nil {
		return err
	}
	if _, _, err := byName.Insert(kv.ArtistsByNameKey(a.Name, a.ID), []byte(a.ID)); err != nil {
		return err
	}
	return nil
}

// mergeArtist implements the artist-record union-merge semantics: an
// artist seen across several albums accumulates genres from every
// album/sidecar that named it, and never loses a summary/logo/banner
// that a later album fails to supply.
func (ix *Indexer) mergeArtist(tx *kv.WriteTx, b *albumBuild) error {
	existing, found, err := getArtist(tx, b.artistID)
	if err != nil {
		return err
	}

	next := model.Artist{ID: b.artistID, Name: b.artistName}
	if found {
		next = existing
		next.Name = b.artistName
	}
	next.Genres = mergeGenres(next.Genres, b.artistSidecar.Genres, b.album.Genres)
	if next.Summary == "" {
		next.Summary = b.artistSidecar.Summary
	}

	var prior *model.Artist
	if found {
		prior = &existing
	}
	return putArtist(tx, next, prior)
}

// putAlbum writes the album's primary record and both of its name
// indexes.
func putAlbum(tx *kv.WriteTx, a model.Album, artistName string) error {
	albums, err := tx.Table(string(kv.TableAlbums))
	if err != nil {
		return err
	}
	byName, err := tx.Table(string(kv.TableAlbumsByName))
	if err != nil {
		return err
	}
	byArtist, err := tx.Table(string(kv.TableArtistAlbums))
	if err != nil {
		return err
	}

	raw, err := encode(a)
	if err != nil {
		return fmt.Errorf("indexer: encode album %s: %w", a.ID, err)
	}
	if _, _, err := albums.Insert([]byte(a.ID), raw); err != nil {
		return err
	}
	if _, _, err := byName.Insert(kv.AlbumsByNameKey(artistName, a.Year, a.Title, a.ID), []byte(a.ID)); err != nil {
		return err
	}
	if _, _, err := byArtist.Insert(kv.ArtistAlbumsKey(a.ArtistID, a.Year, a.Title, a.ID), []byte(a.ID)); err != nil {
		return err
	}
	return nil
}

type embeddedCover struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// writeAlbumBuild persists every record derived from one album
// directory: the album itself, each of its tracks with their
// secondary indexes, seek indexes, embedded cover blobs, and any
// tag-extraction failures recorded along the way.
func writeAlbumBuild(tx *kv.WriteTx, b *albumBuild, now int64) error {
	if err := putAlbum(tx, b.album, b.artistName); err != nil {
		return fmt.Errorf("indexer: write album %s: %w", b.albumID, err)
	}

	tracks, err := tx.Table(string(kv.TableTracks))
	if err != nil {
		return err
	}
	albumTracks, err := tx.Table(string(kv.TableAlbumTracks))
	if err != nil {
		return err
	}
	tracksByName, err := tx.Table(string(kv.TableTracksByName))
	if err != nil {
		return err
	}
	seek, err := tx.Table(string(kv.TableSeek))
	if err != nil {
		return err
	}
	covers, err := tx.Table(string(kv.TableTrackEmbeddedCov))
	if err != nil {
		return err
	}

	for order, build := range b.tracks {
		raw, err := encode(build.track)
		if err != nil {
			return fmt.Errorf("indexer: encode track %s: %w", build.track.ID, err)
		}
		if _, _, err := tracks.Insert([]byte(build.track.ID), raw); err != nil {
			return err
		}
		if _, _, err := albumTracks.Insert(kv.AlbumTracksKey(b.albumID, order, build.track.ID), []byte(build.track.ID)); err != nil {
			return err
		}
		nameKey := kv.TracksByNameKey(b.artistName, b.album.Title, build.track.DiscNo, build.track.TrackNo, build.track.Title, build.track.ID)
		if _, _, err := tracksByName.Insert(nameKey, []byte(build.track.ID)); err != nil {
			return err
		}
		seekRaw, err := encode(build.seek)
		if err != nil {
			return fmt.Errorf("indexer: encode seek index %s: %w", build.track.ID, err)
		}
		if _, _, err := seek.Insert([]byte(build.track.ID), seekRaw); err != nil {
			return err
		}
		if build.coverData != nil {
			rec := embeddedCover{MIMEType: pictureMIME(build.coverData), Data: build.coverData.Data}
			coverRaw, err := encode(rec)
			if err != nil {
				return fmt.Errorf("indexer: encode cover %s: %w", build.track.ID, err)
			}
			if _, _, err := covers.Insert([]byte(build.track.ID), coverRaw); err != nil {
				return err
			}
		}
	}

	if len(b.tagErrorFiles) > 0 {
		if err := putTagErrors(tx, b.albumID, b.tagErrorFiles, now); err != nil {
			return err
		}
	}
	return nil
}

func pictureMIME(p *tagreader.Picture) string {
	if p.MIMEType != "" {
		return p.MIMEType
	}
	return "image/jpeg"
}

// putTagErrors records each failing file and rolls the album's error
// count up into tag_errors.
func putTagErrors(tx *kv.WriteTx, albumID string, files []model.TagErrorFile, now int64) error {
	errFiles, err := tx.Table(string(kv.TableTagErrorFiles))
	if err != nil {
		return err
	}
	errAlbums, err := tx.Table(string(kv.TableTagErrors))
	if err != nil {
		return err
	}

	for _, f := range files {
		f.LastSeen = now
		raw, err := encode(f)
		if err != nil {
			return fmt.Errorf("indexer: encode tag error %s: %w", f.FileRelpath, err)
		}
		if _, _, err := errFiles.Insert([]byte(f.FileRelpath), raw); err != nil {
			return err
		}
	}

	info := model.TagErrorInfo{AlbumID: albumID, Count: len(files), LastSeen: now}
	raw, err := encode(info)
	if err != nil {
		return fmt.Errorf("indexer: encode tag error info %s: %w", albumID, err)
	}
	if _, _, err := errAlbums.Insert([]byte(albumID), raw); err != nil {
		return err
	}
	return nil
}

// putMeta records the schema version, aggregate stats, and the report
// of the scan that just completed.
func putMeta(tx *kv.WriteTx, stats model.Stats, report model.ScanReport) error {
	meta, err := tx.Table(string(kv.TableMeta))
	if err != nil {
		return err
	}
	if _, _, err := meta.Insert([]byte(kv.MetaKeyVersion), []byte(fmt.Sprintf("%d", kv.SchemaVersion))); err != nil {
		return err
	}
	statsRaw, err := encode(stats)
	if err != nil {
		return err
	}
	if _, _, err := meta.Insert([]byte(kv.MetaKeyStats), statsRaw); err != nil {
		return err
	}
	reportRaw, err := encode(report)
	if err != nil {
		return err
	}
	if _, _, err := meta.Insert([]byte(kv.MetaKeyLastScan), reportRaw); err != nil {
		return err
	}
	return nil
}

func tableLen(tx *kv.WriteTx, name kv.Table) (int, error) {
	t, err := tx.Table(string(name))
	if err != nil {
		return 0, err
	}
	return t.Len(), nil
}
