package transcode

import "testing"

func TestOggRoundTripCRCAndGranule(t *testing.T) {
	f := newOggFramer(48000, 2, "/music/Artist/Album/01 Song.mp3")

	var stream []byte
	stream = append(stream, f.Header()...)

	const frameSize = 960 // 20ms at 48kHz
	const numPackets = 10
	payload := make([]byte, 40) // stand-in encoded packet bytes
	for i := 0; i < numPackets; i++ {
		stream = append(stream, f.EncodePacket(payload, frameSize)...)
	}
	stream = append(stream, f.Terminator()...)

	pages := parseOggPages(t, stream)
	if len(pages) < 2+numPackets+1 {
		t.Fatalf("expected at least %d pages, got %d", 2+numPackets+1, len(pages))
	}

	for i, p := range pages {
		if !p.crcValid {
			t.Fatalf("page %d: CRC32 does not verify", i)
		}
	}

	last := pages[len(pages)-1]
	if last.headerType&0x04 == 0 {
		t.Fatal("expected EOS flag on final page")
	}
	wantGranule := uint64(numPackets * frameSize)
	if last.granule != wantGranule {
		t.Fatalf("expected final granule %d, got %d", wantGranule, last.granule)
	}
}

type parsedPage struct {
	headerType byte
	granule    uint64
	crcValid   bool
}

// parseOggPages walks a concatenated page stream, verifying each
// page's CRC32 the same way a conformant client would: zero the
// checksum field, recompute, compare.
func parseOggPages(t *testing.T, data []byte) []parsedPage {
	t.Helper()
	var out []parsedPage
	for len(data) > 0 {
		if len(data) < 27 || string(data[0:4]) != "OggS" {
			t.Fatalf("invalid page sync at offset, remaining %d bytes", len(data))
		}
		numSegs := int(data[26])
		pageLen := 27 + numSegs
		if len(data) < pageLen {
			t.Fatalf("truncated segment table")
		}
		dataLen := 0
		for i := 0; i < numSegs; i++ {
			dataLen += int(data[27+i])
		}
		total := pageLen + dataLen
		if len(data) < total {
			t.Fatalf("truncated page data")
		}

		page := make([]byte, total)
		copy(page, data[:total])
		headerType := page[5]
		granule := leU64(page[6:14])

		gotCRC := leU32(page[22:26])
		for i := 0; i < 4; i++ {
			page[22+i] = 0
		}
		wantCRC := oggCRC32(page)

		out = append(out, parsedPage{headerType: headerType, granule: granule, crcValid: gotCRC == wantCRC})
		data = data[total:]
	}
	return out
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
