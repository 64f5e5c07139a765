package transcode

import "errors"

// errEOF is returned by decoder.ReadPCM when the source is exhausted.
// A distinct sentinel (rather than io.EOF) keeps this package's error
// wrapping unambiguous for callers that also see io.EOF from file I/O.
var errEOF = errors.New("transcode: decoder exhausted")

// decoder abstracts over the codec-specific PCM sources (MP3, FLAC)
// the pipeline decodes from.
type decoder interface {
	SampleRate() int
	Channels() int

	// ReadPCM returns the next chunk of interleaved i16 PCM samples.
	// A non-empty pcm may be returned together with errEOF on the
	// final read.
	ReadPCM() ([]int16, error)

	// SeekApprox requests a coarse seek to targetMs and reports the
	// actual position reached. ok is false when the underlying format
	// cannot seek at all, signaling the caller to fall back to
	// decode-and-discard.
	SeekApprox(targetMs uint32) (actualMs uint32, ok bool)

	Close() error
}
