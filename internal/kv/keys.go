package kv

import (
	"fmt"
	"strings"
)

// Sep is the in-band separator used inside composite secondary-table
// keys. U+001F never occurs in normalized names, so keys built from
// this separator remain byte-transparent and lexicographically
// comparable.
const Sep = "\x1f"

// maxCodePoint is U+10FFFF, the highest valid Unicode scalar value.
// Appended after Sep it forms an exclusive upper bound for a
// prefix range scan: every real key under the prefix sorts below it.
const maxCodePoint = "\U0010FFFF"

// Year4 encodes an optional year as a 4-digit, zero-padded string.
// Absent years sort last (9999); values are clamped to [-9999, 9999]
// then floored at 0 before padding, per spec.
func Year4(year *int32) string {
	y := int32(9999)
	if year != nil {
		y = *year
		if y > 9999 {
			y = 9999
		}
		if y < -9999 {
			y = -9999
		}
		if y < 0 {
			y = 0
		}
	}
	return fmt.Sprintf("%04d", y)
}

// Disc5 and Track5 encode an optional u16 as a 5-digit, zero-padded
// string, using u16::MAX when absent so untagged tracks/discs sort
// last.
func Disc5(disc *uint16) string  { return pad5(disc) }
func Track5(track *uint16) string { return pad5(track) }

func pad5(v *uint16) string {
	n := uint16(65535)
	if v != nil {
		n = *v
	}
	return fmt.Sprintf("%05d", n)
}

// Order8 encodes the 0-padded track sort-rank used in album_tracks
// keys.
func Order8(order int) string {
	return fmt.Sprintf("%08d", order)
}

func lower(s string) string { return strings.ToLower(s) }

// ArtistsByNameKey builds the artists_by_name composite key:
// lowercase(name) | id.
func ArtistsByNameKey(name, artistID string) []byte {
	return []byte(lower(name) + Sep + artistID)
}

// AlbumsByNameKey builds the albums_by_name composite key:
// lowercase(artist_name) | year4 | lowercase(title) | id.
func AlbumsByNameKey(artistName string, year *int32, title, albumID string) []byte {
	return []byte(lower(artistName) + Sep + Year4(year) + Sep + lower(title) + Sep + albumID)
}

// ArtistAlbumsKey builds the artist_albums composite key:
// artist_id | year4 | lowercase(title) | id.
func ArtistAlbumsKey(artistID string, year *int32, title, albumID string) []byte {
	return []byte(artistID + Sep + Year4(year) + Sep + lower(title) + Sep + albumID)
}

// AlbumTracksKey builds the album_tracks composite key:
// album_id | order8 | track_id.
func AlbumTracksKey(albumID string, order int, trackID string) []byte {
	return []byte(albumID + Sep + Order8(order) + Sep + trackID)
}

// TracksByNameKey builds the tracks_by_name composite key:
// lowercase(artist) | lowercase(album) | disc5 | track5 | lowercase(title) | id.
func TracksByNameKey(artist, album string, disc, track *uint16, title, trackID string) []byte {
	return []byte(lower(artist) + Sep + lower(album) + Sep + Disc5(disc) + Sep + Track5(track) + Sep + lower(title) + Sep + trackID)
}

// PrefixRange returns the [start, end) bounds for a range scan over
// every key beginning with prefix ++ Sep.
func PrefixRange(prefix string) (start, end []byte) {
	start = []byte(prefix + Sep)
	end = []byte(prefix + Sep + maxCodePoint)
	return start, end
}

// ExternalAttemptKey builds the external_attempts key for an artist or
// album, e.g. "artist:<id>" or "album:<id>".
func ExternalAttemptKey(kind, id string) []byte {
	return []byte(kind + ":" + id)
}
