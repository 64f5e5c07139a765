// Package model defines the primary entities stored in the library
// index.
package model

// Codec identifies the audio codec of a source track.
type Codec string

const (
	CodecMP3  Codec = "mp3"
	CodecFLAC Codec = "flac"
)

// Artist is a primary artist record.
type Artist struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Genres    []string `json:"genres"`
	Summary   string   `json:"summary,omitempty"`
	LogoRef   string   `json:"logo_ref,omitempty"`
	BannerRef string   `json:"banner_ref,omitempty"`
}

// CoverRefKind distinguishes an album cover sourced from an embedded
// picture in a track versus a standalone file in the album folder.
type CoverRefKind string

const (
	CoverRefEmbedded CoverRefKind = "embedded"
	CoverRefFile     CoverRefKind = "file"
)

// CoverRef points at the source of an album's cover art.
type CoverRef struct {
	Kind    CoverRefKind `json:"kind"`
	TrackID string       `json:"track_id,omitempty"` // set when Kind == CoverRefEmbedded
	Relpath string       `json:"relpath,omitempty"`  // set when Kind == CoverRefFile
}

// Album is a primary album record.
type Album struct {
	ID            string   `json:"id"`
	ArtistID      string   `json:"artist_id"`
	Title         string   `json:"title"`
	Year          *int32   `json:"year,omitempty"`
	FolderRelpath string   `json:"folder_relpath"`
	CoverRef      CoverRef `json:"cover_ref"`
	Genres        []string `json:"genres"`
	Summary       string   `json:"summary,omitempty"`
}

// Track is a primary track record.
type Track struct {
	ID           string   `json:"id"`
	AlbumID      string   `json:"album_id"`
	ArtistID     string   `json:"artist_id"`
	Title        string   `json:"title"`
	TrackNo      *uint16  `json:"track_no,omitempty"`
	DiscNo       *uint16  `json:"disc_no,omitempty"`
	DurationMs   uint32   `json:"duration_ms"`
	Codec        Codec    `json:"codec"`
	SampleRate   *uint32  `json:"sample_rate,omitempty"`
	Channels     *uint8   `json:"channels,omitempty"`
	Bitrate      *uint32  `json:"bitrate,omitempty"`
	FileRelpath  string   `json:"file_relpath"`
	FileSize     uint64   `json:"file_size"`
	Genres       []string `json:"genres"`
}

// SeekPoint is one (time, byte-offset) sample in a track's seek index.
type SeekPoint struct {
	TMs  uint32 `json:"t_ms"`
	Byte uint64 `json:"byte"`
}

// SeekIndex lets the transcoder translate a requested seek time into
// an approximate byte offset in the source file.
type SeekIndex struct {
	DurationMs uint32      `json:"duration_ms"`
	Points     []SeekPoint `json:"points"`
	Hint       string      `json:"hint,omitempty"`
}

// TagErrorFile records a single file that failed tag extraction.
type TagErrorFile struct {
	FileRelpath   string `json:"file_relpath"`
	FolderRelpath string `json:"folder_relpath"`
	Error         string `json:"error"`
	LastSeen      int64  `json:"last_seen"`
}

// TagErrorInfo is the album-granularity rollup of tag errors.
type TagErrorInfo struct {
	AlbumID  string `json:"album_id"`
	Count    int    `json:"count"`
	LastSeen int64  `json:"last_seen"`
}

// ExternalAttempt records the last external-metadata enrichment
// attempt for an artist or album.
type ExternalAttempt struct {
	LastAttempt int64  `json:"last_attempt"`
	LastSuccess *int64 `json:"last_success,omitempty"`
}

// Stats is the aggregate entity count stored in meta.stats.
type Stats struct {
	Artists int `json:"artists"`
	Albums  int `json:"albums"`
	Tracks  int `json:"tracks"`
}

// ScanReport summarizes one completed scan (full or incremental).
// Not part of spec.md's original table list; carried in meta under
// MetaKeyLastScan as a supplemental record (see SPEC_FULL.md §4.C).
type ScanReport struct {
	StartedAtUnix int64 `json:"started_at_unix"`
	DurationMs    int64 `json:"duration_ms"`
	Incremental   bool  `json:"incremental"`
	AlbumsSeen    int   `json:"albums_seen"`
	TracksSeen    int   `json:"tracks_seen"`
	TagErrors     int   `json:"tag_errors"`
}
