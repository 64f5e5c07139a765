package transcode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// flacDecoder wraps mewkiz/flac, decoding one frame at a time and
// interleaving its subframes (one per channel) into i16 PCM, shifting
// from the stream's native bit depth to 16 bits when it differs.
type flacDecoder struct {
	f      *os.File
	stream *flac.Stream
}

func openFLAC(path string) (decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcode: open %s: %w", path, err)
	}
	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("transcode: flac decode %s: %w", path, err)
	}
	return &flacDecoder{f: f, stream: stream}, nil
}

func (d *flacDecoder) SampleRate() int { return int(d.stream.Info.SampleRate) }
func (d *flacDecoder) Channels() int   { return int(d.stream.Info.NChannels) }

func (d *flacDecoder) ReadPCM() ([]int16, error) {
	frame, err := d.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEOF
		}
		return nil, fmt.Errorf("flac: %w", err)
	}

	shift := int(d.stream.Info.BitsPerSample) - 16
	channels := len(frame.Subframes)
	blockSize := int(frame.BlockSize)

	out := make([]int16, blockSize*channels)
	for ch, sub := range frame.Subframes {
		for i := 0; i < blockSize && i < len(sub.Samples); i++ {
			s := sub.Samples[i]
			if shift > 0 {
				s >>= uint(shift)
			} else if shift < 0 {
				s <<= uint(-shift)
			}
			out[i*channels+ch] = clampI16(int32(s))
		}
	}
	return out, nil
}

func (d *flacDecoder) SeekApprox(targetMs uint32) (uint32, bool) {
	targetSample := uint64(targetMs) * uint64(d.stream.Info.SampleRate) / 1000
	actual, err := d.stream.Seek(targetSample)
	if err != nil {
		return 0, false
	}
	return uint32(actual * 1000 / uint64(d.stream.Info.SampleRate)), true
}

func (d *flacDecoder) Close() error { return d.f.Close() }
