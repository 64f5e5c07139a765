// Package tagreader extracts tag metadata and audio properties from a
// single audio file.
package tagreader

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

// Picture is one embedded cover image.
type Picture struct {
	Type      string
	MIMEType  string
	Data      []byte
}

// Info is everything extracted from one audio file. Every tag field
// is optional; absence is the zero value for scalars and nil/empty
// for slices.
type Info struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Year        *int32
	TrackNo     *uint16
	DiscNo      *uint16
	Genres      []string

	DurationMs uint32
	SampleRate *uint32
	Channels   *uint8
	Bitrate    *uint32

	HasEmbeddedCover bool
	CoverPicture     *Picture
}

var firstYear = regexp.MustCompile(`\d{4}`)

// Read extracts tags and audio properties from path. Both the tag
// parse and the ffprobe pass can fail independently; Read returns an
// error when the file cannot be opened or the tag parse fails (naming
// the probe error too when both fail). An ffprobe failure alone is not
// reported: the audio properties are left at their zero values.
func Read(ctx context.Context, path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("tagreader: open: %w", err)
	}
	defer f.Close()

	m, tagErr := tag.ReadFrom(f)

	var info Info
	if tagErr == nil && m != nil {
		info.Title = strings.TrimSpace(m.Title())
		info.Artist = strings.TrimSpace(m.Artist())
		info.AlbumArtist = strings.TrimSpace(m.AlbumArtist())
		info.Album = strings.TrimSpace(m.Album())
		info.Year = parseYear(strconv.Itoa(m.Year()))
		track, _ := m.Track()
		info.TrackNo = toU16(track)
		disc, _ := m.Disc()
		info.DiscNo = toU16(disc)
		info.Genres = splitGenres(m.Genre())

		if pic := m.Picture(); pic != nil {
			info.HasEmbeddedCover = true
			info.CoverPicture = &Picture{
				Type:     pic.Type,
				MIMEType: pic.MIMEType,
				Data:     pic.Data,
			}
			info.CoverPicture.Type = pickFrontCover(m, pic)
		}
	}

	probed, probeErr := probeAudio(ctx, path)
	if probeErr == nil {
		info.DurationMs = probed.DurationMs
		info.SampleRate = probed.SampleRate
		info.Channels = probed.Channels
		info.Bitrate = probed.Bitrate
	}

	if tagErr != nil && probeErr != nil {
		return info, fmt.Errorf("tagreader: %s: tags: %w; probe: %v", path, tagErr, probeErr)
	}
	if tagErr != nil {
		return info, fmt.Errorf("tagreader: %s: %w", path, tagErr)
	}
	return info, nil
}

// pickFrontCover prefers a front-cover picture type when the
// underlying format exposes more than one embedded picture (ID3v2's
// Raw() frame map); dhowden/tag's Picture() already returns its best
// single guess, so this only refines the reported Type label.
func pickFrontCover(m tag.Metadata, best *tag.Picture) string {
	raw := m.Raw()
	for k, v := range raw {
		if pic, ok := v.(*tag.Picture); ok && strings.EqualFold(pic.Type, "Front Cover") {
			_ = k
			return pic.Type
		}
	}
	return best.Type
}

func toU16(v int) *uint16 {
	if v <= 0 {
		return nil
	}
	u := uint16(v)
	return &u
}

// parseYear extracts the first 4 consecutive ASCII digits in s.
func parseYear(s string) *int32 {
	m := firstYear.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	y := int32(n)
	return &y
}

// splitGenres splits on ;,/| and NUL; empty parts are dropped. If
// every part is empty, the raw value is retained as a single genre.
func splitGenres(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ';', ',', '/', '|', '\x00':
			return true
		}
		return false
	})
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{raw}
	}
	return out
}

type probedAudio struct {
	DurationMs uint32
	SampleRate *uint32
	Channels   *uint8
	Bitrate    *uint32
}

// probeAudio runs ffprobe against path via go-ffprobe.v2 and extracts
// duration, sample rate, channel count, and bitrate from the first
// audio stream.
func probeAudio(ctx context.Context, path string) (probedAudio, error) {
	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return probedAudio{}, fmt.Errorf("ffprobe: %w", err)
	}

	var out probedAudio
	if data.Format != nil {
		out.DurationMs = uint32(data.Format.Duration().Milliseconds())
	}

	stream := firstAudioStream(data)
	if stream == nil {
		return out, nil
	}
	if sr, err := strconv.Atoi(stream.SampleRate); err == nil && sr > 0 {
		u := uint32(sr)
		out.SampleRate = &u
	}
	if stream.Channels > 0 {
		c := uint8(stream.Channels)
		out.Channels = &c
	}
	if br, err := strconv.Atoi(stream.BitRate); err == nil && br > 0 {
		b := uint32(br)
		out.Bitrate = &b
	} else if data.Format != nil {
		if br, err := strconv.Atoi(data.Format.BitRate); err == nil && br > 0 {
			b := uint32(br)
			out.Bitrate = &b
		}
	}
	return out, nil
}

// firstAudioStream returns the first audio-codec-type stream in data,
// or nil if none is present.
func firstAudioStream(data *ffprobe.ProbeData) *ffprobe.Stream {
	for i := range data.Streams {
		if string(data.Streams[i].CodecType) == "audio" {
			return data.Streams[i]
		}
	}
	return nil
}
