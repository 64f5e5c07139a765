package kv

// Table is the name of one of the fourteen tables in the library index.
// Typed so a typo in a table name is a compile error rather than a
// silent empty-table read.
type Table string

const (
	TableMeta             Table = "meta"
	TableArtists          Table = "artists"
	TableArtistsByName    Table = "artists_by_name"
	TableAlbums           Table = "albums"
	TableAlbumsByName     Table = "albums_by_name"
	TableArtistAlbums     Table = "artist_albums"
	TableTracks           Table = "tracks"
	TableTracksByName     Table = "tracks_by_name"
	TableAlbumTracks      Table = "album_tracks"
	TableTrackEmbeddedCov Table = "track_embedded_cover"
	TableSeek             Table = "seek"
	TableExternalAttempts Table = "external_attempts"
	TableTagErrors        Table = "tag_errors"
	TableTagErrorFiles    Table = "tag_error_files"
)

// NonMetaTables lists every table a full scan truncates and
// repopulates. meta is handled separately since it also holds the
// schema version and last-scan report across scans.
var NonMetaTables = []Table{
	TableArtists,
	TableArtistsByName,
	TableAlbums,
	TableAlbumsByName,
	TableArtistAlbums,
	TableTracks,
	TableTracksByName,
	TableAlbumTracks,
	TableTrackEmbeddedCov,
	TableSeek,
	TableExternalAttempts,
	TableTagErrors,
	TableTagErrorFiles,
}

// Meta keys within the meta table.
const (
	MetaKeyVersion  = "version"
	MetaKeyStats    = "stats"
	MetaKeyLastScan = "last_scan"
)

// SchemaVersion is the current on-disk schema version. A database
// opened with a different (or absent) version must be fully rebuilt
// before serving reads.
const SchemaVersion = 1
