package transcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/llehouerou/go-mp3"
)

// mp3Decoder wraps llehouerou/go-mp3, which always decodes to
// interleaved 16-bit stereo PCM regardless of the source's channel
// layout (mirrors llehouerou-waves' own goMP3Decoder wrapper).
type mp3Decoder struct {
	f       *os.File
	dec     *mp3.Decoder
	readBuf []byte
}

func openMP3(path string) (decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcode: open %s: %w", path, err)
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("transcode: mp3 decode %s: %w", path, err)
	}
	return &mp3Decoder{f: f, dec: dec, readBuf: make([]byte, 4*4096)}, nil
}

func (d *mp3Decoder) SampleRate() int { return d.dec.SampleRate() }
func (d *mp3Decoder) Channels() int   { return 2 }

func (d *mp3Decoder) ReadPCM() ([]int16, error) {
	n, err := d.dec.Read(d.readBuf)
	samples := bytesToI16(d.readBuf[:n])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return samples, errEOF
		}
		return samples, fmt.Errorf("mp3: %w", err)
	}
	return samples, nil
}

func (d *mp3Decoder) SeekApprox(targetMs uint32) (uint32, bool) {
	targetSample := int64(targetMs) * int64(d.dec.SampleRate()) / 1000
	if err := d.dec.SeekToSample(targetSample); err != nil {
		return 0, false
	}
	actual := d.dec.SamplePosition()
	return uint32(actual * 1000 / int64(d.dec.SampleRate())), true
}

func (d *mp3Decoder) Close() error { return d.f.Close() }

func bytesToI16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
