package indexer

import (
	"errors"
	"fmt"
	"strings"

	"phonolite/internal/kv"
)

// ErrArtistNotFound is returned by UpdateArtistEnrichment when no
// artist with the given id exists in the index.
var ErrArtistNotFound = errors.New("indexer: artist not found")

// UpdateArtistEnrichment applies an external enrichment write to
// artist id: per spec.md §4.C, genres always union-merge unless
// replace is set (then they replace the list entirely); summary only
// overwrites when replace is set or the existing value is empty;
// logo/banner overwrite only when the provided value differs from
// what's stored. It reports whether the row actually changed — the
// caller elides the commit when it returns false.
func (ix *Indexer) UpdateArtistEnrichment(id string, summary *string, genres []string, logo, banner *string, replace bool) (changed bool, err error) {
	err = ix.db.Update(func(tx *kv.WriteTx) error {
		existing, found, err := getArtist(tx, id)
		if !found {
			if err != nil {
				return err
			}
			return fmt.Errorf("indexer: enrich artist %s: %w", id, ErrArtistNotFound)
		}

		next := existing
		if replace {
			next.Genres = dedupeCaseInsensitive(genres)
		} else {
			next.Genres = mergeGenres(existing.Genres, genres)
		}
		if len(next.Genres) != len(existing.Genres) {
			changed = true
		} else {
			for i := range next.Genres {
				if !strings.EqualFold(next.Genres[i], existing.Genres[i]) {
					changed = true
					break
				}
			}
		}

		if summary != nil && (replace || strings.TrimSpace(existing.Summary) == "") {
			if next.Summary != *summary {
				next.Summary = *summary
				changed = true
			}
		}
		if logo != nil && *logo != existing.LogoRef {
			next.LogoRef = *logo
			changed = true
		}
		if banner != nil && *banner != existing.BannerRef {
			next.BannerRef = *banner
			changed = true
		}

		if !changed {
			return nil
		}
		return putArtist(tx, next, &existing)
	})
	return changed, err
}

func dedupeCaseInsensitive(in []string) []string {
	return mergeGenres(in)
}
