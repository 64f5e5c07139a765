package transcode

import "encoding/binary"

// Reserved raw-framed chunk length values, per spec.md §4.E.
const (
	rawEOSMarker       = uint16(0x0000)
	rawSeekResetMarker = uint16(0xFFFF)
)

// SeekResetChunk is the bytes a replacement stream must send as its
// first chunk after a seek, per spec.md §4.G: a zero-length raw frame
// with the reserved 0xFFFF length, telling the client to drop decoder
// state. It has no Ogg equivalent — seeks on an Ogg-framed stream
// start a wholly new Ogg logical bitstream instead.
var SeekResetChunk = func() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, rawSeekResetMarker)
	return b
}()

type rawFramer struct {
	sampleRate int
	channels   int
	frameMs    int
	meta       RawMeta
	bitrate    uint32
}

func newRawFramer(sampleRate, channels, frameMs int, meta RawMeta, bitrateBps uint32) *rawFramer {
	return &rawFramer{sampleRate: sampleRate, channels: channels, frameMs: frameMs, meta: meta, bitrate: bitrateBps}
}

func (f *rawFramer) Header() []byte {
	strs := [][]byte{
		[]byte(f.meta.TrackID),
		[]byte(f.meta.Title),
		[]byte(f.meta.Artist),
		[]byte(f.meta.Album),
		[]byte("opus"),
		[]byte("raw"),
	}

	tail := make([]byte, 0, 16+12+lenSum(strs))
	tail = appendU32(tail, uint32(f.sampleRate))
	tail = append(tail, byte(f.channels))
	tail = append(tail, byte(f.frameMs))
	tail = appendU32(tail, f.bitrate)
	tail = appendU32(tail, f.meta.DurationMs)
	tail = appendU16(tail, 0) // pre_skip
	for _, s := range strs {
		tail = appendU16(tail, uint16(len(s)))
	}
	for _, s := range strs {
		tail = append(tail, s...)
	}

	out := make([]byte, 0, 8+1+1+2+len(tail))
	out = append(out, "OPUSR01\x00"...)
	out = append(out, 1) // version
	out = append(out, 0) // flags
	out = appendU16(out, uint16(len(tail)))
	out = append(out, tail...)
	return out
}

func (f *rawFramer) EncodePacket(payload []byte, _ int) []byte {
	out := make([]byte, 0, 2+len(payload))
	out = appendU16(out, uint16(len(payload)))
	out = append(out, payload...)
	return out
}

func (f *rawFramer) Terminator() []byte {
	return appendU16(nil, rawEOSMarker)
}

func lenSum(strs [][]byte) int {
	n := 0
	for _, s := range strs {
		n += len(s)
	}
	return n
}

func appendU16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}
