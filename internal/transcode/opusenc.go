package transcode

import (
	"fmt"

	"github.com/jj11hh/opus"
)

// opusEncoder wraps jj11hh/opus.Encoder, mirroring the
// NewDecoder/DecodeFloat32 surface llehouerou-waves uses for playback
// decode (internal/player/opus.go) with its encode-side counterpart.
type opusEncoder struct {
	enc       *opus.Encoder
	channels  int
	bitrate   int
	floatBuf  []float32
	packetBuf []byte
}

func newOpusEncoder(sampleRate, channels, bitrateBps int) (*opusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderInitFailed, err)
	}
	if err := enc.SetBitrate(bitrateBps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderInitFailed, err)
	}
	return &opusEncoder{
		enc:       enc,
		channels:  channels,
		bitrate:   bitrateBps,
		packetBuf: make([]byte, 4000), // libopus's documented max packet size
	}, nil
}

// SetBitrate mutates the live encoder's target bitrate, per spec.md
// §4.E step 5's "reload shared_bps... invoke encoder.set_bitrate".
func (e *opusEncoder) SetBitrate(bps int) error {
	if err := e.enc.SetBitrate(bps); err != nil {
		return err
	}
	e.bitrate = bps
	return nil
}

// EncodeFrame encodes one frame of interleaved i16 PCM (frameSize *
// channels samples) into an Opus packet.
func (e *opusEncoder) EncodeFrame(pcm []int16) ([]byte, error) {
	if cap(e.floatBuf) < len(pcm) {
		e.floatBuf = make([]float32, len(pcm))
	}
	floats := e.floatBuf[:len(pcm)]
	for i, s := range pcm {
		floats[i] = float32(s) / 32768.0
	}

	n, err := e.enc.EncodeFloat32(floats, e.packetBuf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	out := make([]byte, n)
	copy(out, e.packetBuf[:n])
	return out, nil
}

func (e *opusEncoder) Close() error {
	return nil
}
