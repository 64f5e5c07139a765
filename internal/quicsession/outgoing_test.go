package quicsession

import (
	"testing"

	"phonolite/internal/transcode"
)

func TestStreamIDAllocatorStartsAtThreeAndStepsByFour(t *testing.T) {
	a := newStreamIDAllocator()
	want := []uint64{3, 7, 11, 15}
	for i, w := range want {
		if got := a.allocate(); got != w {
			t.Fatalf("allocate() #%d = %d, want %d", i, got, w)
		}
	}
}

func TestHeadIsSeekResetDetectsMarker(t *testing.T) {
	o := &OutgoingStream{}
	if o.headIsSeekReset() {
		t.Fatal("expected false on empty pending queue")
	}

	o.pending = [][]byte{{0x00, 0x05, 1, 2, 3, 4, 5}}
	if o.headIsSeekReset() {
		t.Fatal("expected false for a regular framed chunk")
	}

	o.pending = [][]byte{transcode.SeekResetChunk}
	if !o.headIsSeekReset() {
		t.Fatal("expected true when the head chunk is the 0xFFFF seek-reset marker")
	}
}

func TestDrainBuffersChunksUntilChannelCloses(t *testing.T) {
	rx := make(chan transcode.Chunk, 4)
	rx <- transcode.Chunk{Data: []byte{1, 2, 3}}
	rx <- transcode.Chunk{Data: []byte{4, 5}}
	close(rx)

	o := &OutgoingStream{rx: rx}
	more := o.drain()
	if more {
		t.Fatal("expected drain to report no more data once rx is closed")
	}
	if !o.finished {
		t.Fatal("expected finished=true after rx closes")
	}
	if o.bufferedBytes != 5 {
		t.Fatalf("expected 5 buffered bytes, got %d", o.bufferedBytes)
	}
	if len(o.pending) != 2 {
		t.Fatalf("expected 2 pending chunks, got %d", len(o.pending))
	}
}

func TestDrainStopsAtMaxStreamBufferBytes(t *testing.T) {
	rx := make(chan transcode.Chunk, 2)
	big := make([]byte, maxStreamBufferBytes)
	rx <- transcode.Chunk{Data: big}
	rx <- transcode.Chunk{Data: []byte{1}}

	o := &OutgoingStream{rx: rx}
	more := o.drain()
	if !more {
		t.Fatal("expected drain to report more data may arrive once the buffer cap is hit")
	}
	if o.bufferedBytes != maxStreamBufferBytes {
		t.Fatalf("expected exactly %d buffered bytes, got %d", maxStreamBufferBytes, o.bufferedBytes)
	}
	if len(o.pending) != 1 {
		t.Fatalf("expected the second chunk to remain unread, got %d pending entries", len(o.pending))
	}
}

func TestDrainMarksFailedOnChunkError(t *testing.T) {
	rx := make(chan transcode.Chunk, 1)
	sentinel := errTestDecode
	rx <- transcode.Chunk{Err: sentinel}

	o := &OutgoingStream{rx: rx}
	o.drain()
	if !o.finished {
		t.Fatal("expected finished=true on a chunk error")
	}
	if o.failed != sentinel {
		t.Fatalf("expected failed to be set to the chunk's error, got %v", o.failed)
	}
}

var errTestDecode = &testError{"decode failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
