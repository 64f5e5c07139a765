// Package transcode implements the decode -> resample -> Opus-encode
// pipeline of spec.md §4.E. A Producer is a pure function of (file
// path, selector, frame size, output framing, start position): its
// only output is a channel of encoded chunks, its only external input
// besides the file is the selector's shared-bitrate cell. It knows
// nothing about QUIC, sessions, or clients, which is what lets a seek
// be expressed as "drop the producer, start a new one, emit a marker"
// one level up in internal/quicsession.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Mode selects whether the encoder bitrate is fixed for the stream's
// lifetime or continuously retuned from a shared cell.
type Mode int

const (
	ModeAuto Mode = iota
	ModeFixed
)

// Quality names the default bitrate ladder rung when no explicit
// bitrate is supplied, matching internal/quality's own ladder.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

var qualityDefaultBps = map[Quality]int{
	QualityLow:    48000,
	QualityMedium: 96000,
	QualityHigh:   160000,
}

// Selector picks the initial and (in Auto mode) ongoing target
// bitrate for one stream.
type Selector struct {
	Mode      Mode
	Quality   Quality
	FixedBps  int          // used when Mode == ModeFixed
	SharedBps *atomic.Int64 // used when Mode == ModeAuto; nil falls back to Quality's default
}

func (s Selector) initialBitrate() int {
	if s.Mode == ModeFixed && s.FixedBps > 0 {
		return s.FixedBps
	}
	if s.SharedBps != nil {
		if v := s.SharedBps.Load(); v > 0 {
			return int(v)
		}
	}
	if bps, ok := qualityDefaultBps[s.Quality]; ok {
		return bps
	}
	return qualityDefaultBps[QualityMedium]
}

// OutputKind selects the wire framing of the encoded stream.
type OutputKind int

const (
	OutputOgg OutputKind = iota
	OutputRawFramed
)

// RawMeta supplies the track metadata the raw-framed header embeds.
// Unused when OutputKind is OutputOgg.
type RawMeta struct {
	TrackID    string
	Title      string
	Artist     string
	Album      string
	DurationMs uint32
}

// Options configures one transcode run.
type Options struct {
	FilePath   string
	Selector   Selector
	FrameMs    int
	OutputKind OutputKind
	StartMs    uint32
	RawMeta    RawMeta
}

// Chunk is one unit written to a Producer's output channel: either
// encoded bytes ready to forward to the client, or a terminal error.
// A Producer never sends a chunk after an error chunk.
type Chunk struct {
	Data []byte
	Err  error
}

// Sentinel transcode errors, surfaced per spec.md §7 by pushing an Err
// chunk onto the channel; the caller (QUIC layer) closes the stream on
// receipt.
var (
	ErrInvalidFrameMs       = errors.New("transcode: invalid frame_ms")
	ErrUnsupportedChannels  = errors.New("transcode: unsupported channel count")
	ErrUnsupportedContainer = errors.New("transcode: unsupported container")
	ErrEncoderInitFailed    = errors.New("transcode: encoder init failed")
	ErrDecoderResetRequired = errors.New("transcode: decoder reset required")
	ErrEncodeFailed         = errors.New("transcode: encode failed")
)

var validFrameMs = map[int]bool{2: true, 5: true, 10: true, 20: true, 40: true, 60: true}

const outputSampleRate = 48000

// maxSeekSkipMs is the cap on how much of a coarse seek's undershoot
// is compensated for by dropping leading output samples; beyond this,
// the coarse position is accepted as-is per spec.md §4.E.
const maxSeekSkipMs = 250

// Producer runs one decode/resample/encode pipeline and streams the
// result to a channel.
type Producer struct {
	opts Options
	log  *slog.Logger
}

func NewProducer(opts Options, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{opts: opts, log: log}
}

// Run starts the pipeline in its own goroutine and returns the channel
// it writes chunks to. The channel is closed when the pipeline ends,
// whether by reaching end-of-stream, by an error, or by ctx
// cancellation (the producer observes ctx.Err() between frames and
// stops without emitting a terminator, mirroring "seeks cancel the
// prior producer by dropping its receiver" in spec.md §5).
func (p *Producer) Run(ctx context.Context) <-chan Chunk {
	out := make(chan Chunk, 4)
	go func() {
		defer close(out)
		if err := p.run(ctx, out); err != nil {
			select {
			case out <- Chunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func (p *Producer) run(ctx context.Context, out chan<- Chunk) error {
	if !validFrameMs[p.opts.FrameMs] {
		return fmt.Errorf("%w: %d", ErrInvalidFrameMs, p.opts.FrameMs)
	}

	dec, err := openDecoder(p.opts.FilePath)
	if err != nil {
		return err
	}
	defer dec.Close()

	channels := dec.Channels()
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}

	skipSamples := 0
	if p.opts.StartMs > 0 {
		actualMs, ok := dec.SeekApprox(p.opts.StartMs)
		if !ok {
			if err := decodeAndDiscard(dec, p.opts.StartMs); err != nil {
				return err
			}
		} else {
			deltaMs := int64(p.opts.StartMs) - int64(actualMs)
			if deltaMs > 0 && deltaMs <= maxSeekSkipMs {
				skipSamples = int(deltaMs) * outputSampleRate / 1000 * channels
			}
			// deltaMs > maxSeekSkipMs: accept the coarse position,
			// per spec.md §4.E.
		}
	}

	enc, err := newOpusEncoder(outputSampleRate, channels, p.opts.Selector.initialBitrate())
	if err != nil {
		return err
	}
	defer enc.Close()

	framer := newFramer(p.opts.OutputKind, outputSampleRate, channels, p.opts.FrameMs, p.opts.RawMeta,
		uint32(p.opts.Selector.initialBitrate()), p.opts.FilePath)

	if hdr := framer.Header(); hdr != nil {
		if err := send(ctx, out, hdr); err != nil {
			return nil
		}
	}

	var resamp *resampler
	if dec.SampleRate() != outputSampleRate {
		resamp = newResampler(dec.SampleRate(), outputSampleRate, channels)
	}

	frameSize := 48 * p.opts.FrameMs // samples per channel at 48kHz
	staging := make([]int16, 0, frameSize*channels*2)
	dropRemaining := skipSamples

	flushStaging := func(final bool) error {
		for len(staging) >= frameSize*channels || (final && len(staging) > 0) {
			var frame []int16
			if len(staging) >= frameSize*channels {
				frame = staging[:frameSize*channels]
				staging = staging[frameSize*channels:]
			} else {
				frame = make([]int16, frameSize*channels)
				copy(frame, staging)
				staging = nil
			}

			if p.opts.Selector.Mode == ModeAuto && p.opts.Selector.SharedBps != nil {
				if want := int(p.opts.Selector.SharedBps.Load()); want > 0 && want != enc.bitrate {
					if err := enc.SetBitrate(want); err != nil {
						return fmt.Errorf("%w: %v", ErrEncoderInitFailed, err)
					}
				}
			}

			payload, err := enc.EncodeFrame(frame)
			if err != nil {
				return err
			}
			chunk := framer.EncodePacket(payload, frameSize)
			if err := send(ctx, out, chunk); err != nil {
				return nil
			}
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		pcm, readErr := dec.ReadPCM()
		if len(pcm) > 0 {
			if resamp != nil {
				pcm = resamp.Push(pcm)
			}
			if dropRemaining > 0 {
				drop := dropRemaining
				if drop > len(pcm) {
					drop = len(pcm)
				}
				pcm = pcm[drop:]
				dropRemaining -= drop
			}
			staging = append(staging, pcm...)
			if err := flushStaging(false); err != nil {
				return err
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, errEOF) {
				return fmt.Errorf("transcode: decode: %w", readErr)
			}
			break
		}
	}

	if err := flushStaging(true); err != nil {
		return err
	}

	if term := framer.Terminator(); term != nil {
		if err := send(ctx, out, term); err != nil {
			return nil
		}
	}
	return nil
}

func send(ctx context.Context, out chan<- Chunk, data []byte) error {
	select {
	case out <- Chunk{Data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// decodeAndDiscard implements the "seek rejected -> decode and
// discard" fallback: read and throw away frames until targetMs of
// audio has passed.
func decodeAndDiscard(dec decoder, targetMs uint32) error {
	targetSamples := int(targetMs) * dec.SampleRate() / 1000 * dec.Channels()
	discarded := 0
	for discarded < targetSamples {
		pcm, err := dec.ReadPCM()
		discarded += len(pcm)
		if err != nil {
			if errors.Is(err, errEOF) {
				return nil
			}
			return fmt.Errorf("transcode: decode-and-discard: %w", err)
		}
	}
	return nil
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func openDecoder(path string) (decoder, error) {
	switch extOf(path) {
	case ".mp3":
		return openMP3(path)
	case ".flac":
		return openFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContainer, extOf(path))
	}
}
