package transcode

// framer wraps a sequence of encoded Opus packets in one of the two
// wire formats spec.md §4.E defines.
type framer interface {
	// Header returns the bytes to emit before any audio packet, or nil
	// if the format has none.
	Header() []byte
	// EncodePacket wraps one Opus packet (encoded from frameSizeSamples
	// samples per channel) for the wire.
	EncodePacket(payload []byte, frameSizeSamples int) []byte
	// Terminator returns the bytes to emit at end-of-stream, or nil.
	Terminator() []byte
}

func newFramer(kind OutputKind, sampleRate, channels, frameMs int, meta RawMeta, bitrateBps uint32, filePath string) framer {
	switch kind {
	case OutputOgg:
		return newOggFramer(sampleRate, channels, filePath)
	default:
		return newRawFramer(sampleRate, channels, frameMs, meta, bitrateBps)
	}
}
