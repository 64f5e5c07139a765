// Package indexer builds and maintains the library index: walking the
// music root, extracting tags, deriving albums and artists, and
// writing the result into the embedded key-value store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phonolite/internal/idgen"
	"phonolite/internal/kv"
	"phonolite/internal/library/model"
)

// Indexer owns one music root and the database it indexes into.
type Indexer struct {
	db        *kv.DB
	musicRoot string
	log       *slog.Logger
}

func New(db *kv.DB, musicRoot string, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{db: db, musicRoot: musicRoot, log: log}
}

// RunFullScan discards the entire index and rebuilds it from the
// filesystem, per spec.md §4.C's full-scan mode.
func (ix *Indexer) RunFullScan(ctx context.Context) (model.ScanReport, error) {
	return ix.run(ctx, false)
}

// RunIncrementalScan discovers album directories as usual but skips
// any whose album id is already present in the index, per spec.md
// §4.C's incremental-scan mode.
func (ix *Indexer) RunIncrementalScan(ctx context.Context) (model.ScanReport, error) {
	return ix.run(ctx, true)
}

func (ix *Indexer) run(ctx context.Context, incremental bool) (model.ScanReport, error) {
	startedAt := time.Now()
	dirs, err := discoverAlbumDirs(ix.musicRoot)
	if err != nil {
		return model.ScanReport{}, fmt.Errorf("indexer: discover albums: %w", err)
	}
	ix.log.Info("scan starting", "incremental", incremental, "album_dirs", len(dirs))

	var report model.ScanReport
	err = ix.db.Update(func(tx *kv.WriteTx) error {
		if !incremental {
			for _, t := range kv.NonMetaTables {
				if err := tx.DeleteTable(string(t)); err != nil {
					return err
				}
			}
		}

		albums, err := tx.Table(string(kv.TableAlbums))
		if err != nil {
			return err
		}

		now := startedAt.Unix()
		var albumsSeen, tracksSeen, tagErrors int

		for _, dir := range dirs {
			if err := ctx.Err(); err != nil {
				return err
			}

			if incremental {
				relpath := relpath(ix.musicRoot, dir)
				albumID := idgen.AlbumID(relpath)
				if _, exists := albums.Get([]byte(albumID)); exists {
					continue
				}
			}

			b, err := buildAlbum(ctx, ix.musicRoot, dir)
			if err != nil {
				return err
			}
			if b == nil {
				continue
			}

			if err := ix.mergeArtist(tx, b); err != nil {
				return fmt.Errorf("indexer: merge artist for %s: %w", dir, err)
			}
			if err := writeAlbumBuild(tx, b, now); err != nil {
				return fmt.Errorf("indexer: write album %s: %w", dir, err)
			}

			albumsSeen++
			tracksSeen += len(b.tracks)
			tagErrors += len(b.tagErrorFiles)
			if len(b.tagErrorFiles) > 0 {
				ix.log.Warn("tag extraction errors", "album", dir, "count", len(b.tagErrorFiles))
			}
		}

		artistsTotal, err := tableLen(tx, kv.TableArtists)
		if err != nil {
			return err
		}
		albumsTotal, err := tableLen(tx, kv.TableAlbums)
		if err != nil {
			return err
		}
		tracksTotal, err := tableLen(tx, kv.TableTracks)
		if err != nil {
			return err
		}

		report = model.ScanReport{
			StartedAtUnix: now,
			DurationMs:    time.Since(startedAt).Milliseconds(),
			Incremental:   incremental,
			AlbumsSeen:    albumsSeen,
			TracksSeen:    tracksSeen,
			TagErrors:     tagErrors,
		}
		stats := model.Stats{Artists: artistsTotal, Albums: albumsTotal, Tracks: tracksTotal}
		return putMeta(tx, stats, report)
	})
	if err != nil {
		return model.ScanReport{}, err
	}

	ix.log.Info("scan complete",
		"incremental", incremental,
		"albums_seen", report.AlbumsSeen,
		"tracks_seen", report.TracksSeen,
		"tag_errors", report.TagErrors,
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

// LastScanReport returns the report recorded by the most recent scan,
// if the index has ever been built.
func (ix *Indexer) LastScanReport() (model.ScanReport, bool, error) {
	var report model.ScanReport
	found := false
	err := ix.db.View(func(tx *kv.ReadTx) error {
		meta, err := tx.Table(string(kv.TableMeta))
		if err != nil {
			if errors.Is(err, kv.ErrTableNotExist) {
				return nil
			}
			return err
		}
		raw, ok := meta.Get([]byte(kv.MetaKeyLastScan))
		if !ok {
			return nil
		}
		found = true
		return decode(raw, &report)
	})
	return report, found, err
}
