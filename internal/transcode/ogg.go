package transcode

import (
	"crypto/sha256"
	"encoding/binary"
)

// oggCRCTable is the non-reflected CRC32 table Ogg pages use
// (polynomial 0x04C11DB7, initial value 0, no input/output
// reflection) — distinct from stdlib crc32's reflected IEEE table,
// grounded on thesyncim-gopus's own from-scratch Ogg CRC
// implementation (container/ogg/header.go,
// multistream/libopus_test.go).
var oggCRCTable [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
		oggCRCTable[i] = crc
	}
}

func oggCRC32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

const oggMaxGranule = ^uint64(0) // math.MaxUint64, continuation-page granule per spec.md §9 OQ2

// oggFramer implements the OggOpus container: an OpusHead page, an
// OpusTags page, then one or more pages per encoded audio packet.
type oggFramer struct {
	serial   uint32
	seq      uint32
	granule  uint64
	channels int
}

func newOggFramer(sampleRate, channels int, filePath string) *oggFramer {
	return &oggFramer{serial: fileSerial(filePath), channels: channels}
}

// fileSerial derives a deterministic-per-file Ogg bitstream serial
// number from the lower 32 bits of the file path's hash, per spec.md
// §4.E.
func fileSerial(path string) uint32 {
	sum := sha256.Sum256([]byte(path))
	return binary.BigEndian.Uint32(sum[len(sum)-4:])
}

func (f *oggFramer) Header() []byte {
	head := opusHeadPacket(48000, uint8(f.channels))
	tags := opusTagsPacket()

	var out []byte
	out = append(out, f.page(head, 0x02, 0)...) // BOS
	f.seq++
	out = append(out, f.page(tags, 0x00, 0)...)
	f.seq++
	return out
}

func (f *oggFramer) EncodePacket(payload []byte, frameSizeSamples int) []byte {
	f.granule += uint64(frameSizeSamples)
	pages := f.pagesForPacket(payload, f.granule, 0x00)
	f.seq += uint32(len(pages))
	var out []byte
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}

func (f *oggFramer) Terminator() []byte {
	page := f.page(nil, 0x04, f.granule) // EOS, zero-length packet
	f.seq++
	return page
}

func opusHeadPacket(sampleRate uint32, channels uint8) []byte {
	b := make([]byte, 19)
	copy(b[0:8], "OpusHead")
	b[8] = 1 // version
	b[9] = channels
	binary.LittleEndian.PutUint16(b[10:12], 0) // pre-skip
	binary.LittleEndian.PutUint32(b[12:16], sampleRate)
	binary.LittleEndian.PutUint16(b[16:18], 0) // output gain
	b[18] = 0                                  // channel mapping family
	return b
}

func opusTagsPacket() []byte {
	vendor := "phonolite"
	b := make([]byte, 0, 8+4+len(vendor)+4)
	b = append(b, "OpusTags"...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(vendor)))
	b = append(b, lenBuf[:]...)
	b = append(b, vendor...)
	binary.LittleEndian.PutUint32(lenBuf[:], 0) // comment count
	b = append(b, lenBuf[:]...)
	return b
}

// page builds a single-page, single-segment-table Ogg page carrying
// exactly one packet (payload may be empty for the EOS terminator).
func (f *oggFramer) page(payload []byte, headerType byte, granule uint64) []byte {
	pages := f.pagesForPacket(payload, granule, headerType)
	if len(pages) == 0 {
		return nil
	}
	var out []byte
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}

// pagesForPacket splits payload into one or more Ogg pages using
// standard 255-byte lacing. finalGranule is recorded on the final
// page; every earlier (continuation) page carries oggMaxGranule, per
// spec.md §4.E/§9.
func (f *oggFramer) pagesForPacket(payload []byte, finalGranule uint64, headerType byte) [][]byte {
	segments := laceSegments(payload)
	const maxSegs = 255
	var pages [][]byte
	for i := 0; i < len(segments); i += maxSegs {
		end := i + maxSegs
		if end > len(segments) {
			end = len(segments)
		}
		chunkSegs := segments[i:end]
		isFinal := end >= len(segments)

		var data []byte
		for _, s := range chunkSegs {
			data = append(data, s...)
		}

		ht := headerType
		if i > 0 {
			ht |= 0x01 // continuation
		}
		granule := oggMaxGranule
		if isFinal {
			granule = finalGranule
		}

		pages = append(pages, f.buildPage(data, chunkSegs, ht, granule, f.seq+uint32(len(pages))))
	}
	return pages
}

// laceSegments splits data into the Ogg lacing-value sequence: each
// full 255-byte run is one segment, with a final shorter (possibly
// zero-length) segment terminating the packet.
func laceSegments(data []byte) [][]byte {
	var segs [][]byte
	for len(data) >= 255 {
		segs = append(segs, data[:255])
		data = data[255:]
	}
	segs = append(segs, data) // 0..254 bytes, always present as terminator
	return segs
}

func (f *oggFramer) buildPage(data []byte, segs [][]byte, headerType byte, granule uint64, seq uint32) []byte {
	page := make([]byte, 27+len(segs))
	copy(page[0:4], "OggS")
	page[4] = 0 // version
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:14], granule)
	binary.LittleEndian.PutUint32(page[14:18], f.serial)
	binary.LittleEndian.PutUint32(page[18:22], seq)
	// checksum at [22:26] computed below, zeroed for now
	page[26] = byte(len(segs))
	for i, s := range segs {
		page[27+i] = byte(len(s))
	}
	page = append(page, data...)

	crc := oggCRC32(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)
	return page
}
