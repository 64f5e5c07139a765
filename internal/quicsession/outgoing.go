package quicsession

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"phonolite/internal/transcode"
)

// Role distinguishes the one stream currently being played (Active)
// from the ones being transcoded ahead of time (Prefetch), per
// spec.md §4.G.
type Role int

const (
	RoleActive Role = iota
	RolePrefetch
)

func (r Role) String() string {
	if r == RoleActive {
		return "active"
	}
	return "prefetch"
}

// maxStreamBufferBytes caps how much encoded data an OutgoingStream
// holds in pending before its producer stops being drained, per
// spec.md §4.G.
const maxStreamBufferBytes = 6 << 20

// OutgoingStream is one server-initiated unidirectional QUIC stream
// carrying one track's encoded audio, plus the bookkeeping the
// send-gate loop needs: a pending byte queue fed by the transcoder's
// chunk channel, and role/offset/finished state.
type OutgoingStream struct {
	streamID uint64
	trackID  string
	role     Role
	frameMs  int
	selector transcode.Selector

	send *quic.SendStream

	rx     <-chan transcode.Chunk
	cancel context.CancelFunc

	pending       [][]byte
	bufferedBytes int
	sentBytes     int64
	finished      bool
	failed        error
}

// drain pulls ready chunks from rx into pending, up to
// maxStreamBufferBytes, without blocking. It returns false once rx
// has been closed and nothing more will ever arrive.
func (o *OutgoingStream) drain() bool {
	for o.bufferedBytes < maxStreamBufferBytes {
		select {
		case chunk, ok := <-o.rx:
			if !ok {
				o.finished = true
				return false
			}
			if chunk.Err != nil {
				o.failed = chunk.Err
				o.finished = true
				return false
			}
			if len(chunk.Data) == 0 {
				continue
			}
			o.pending = append(o.pending, chunk.Data)
			o.bufferedBytes += len(chunk.Data)
		default:
			return true
		}
	}
	return true
}

// headIsSeekReset reports whether the next pending chunk is the
// 0xFFFF seek-reset marker, which bypasses the send-gate per
// spec.md §4.G.
func (o *OutgoingStream) headIsSeekReset() bool {
	if len(o.pending) == 0 {
		return false
	}
	h := o.pending[0]
	return len(h) >= 2 && h[0] == 0xFF && h[1] == 0xFF
}

// flushDeadline bounds how long one flush call may block a slow
// client's write before the send-gate tick moves on to the next
// stream; quic-go's SendStream.Write blocks once the flow-control
// window is full, and one stale client must not stall delivery to
// every other stream on the same tick.
const flushDeadline = 5 * time.Millisecond

// flush writes as much of pending as the transport accepts within
// flushDeadline. A deadline timeout is not an error: it just means the
// client's flow-control window is full, and the remainder stays
// pending for the next tick.
func (o *OutgoingStream) flush() error {
	if err := o.send.SetWriteDeadline(time.Now().Add(flushDeadline)); err != nil {
		return err
	}
	for len(o.pending) > 0 {
		chunk := o.pending[0]
		n, err := o.send.Write(chunk)
		o.sentBytes += int64(n)
		o.bufferedBytes -= n
		if n > 0 {
			if n < len(chunk) {
				o.pending[0] = chunk[n:]
			} else {
				o.pending = o.pending[1:]
			}
		}
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			return err
		}
	}
	return nil
}

func (o *OutgoingStream) close() {
	if o.cancel != nil {
		o.cancel()
	}
	if o.send != nil {
		o.send.Close()
	}
}

var atomicStreamCounterStart uint64 = 3

// streamIDAllocator allocates the protocol-level stream IDs spec.md
// §4.G tracks for bookkeeping (starting at 3, stepping by 4) — a
// parallel sequence to quic-go's own transport-level stream IDs,
// since §4.G's field records the *first* ID opened per connection,
// not a replacement for the transport's allocation.
type streamIDAllocator struct {
	next atomic.Uint64
}

func newStreamIDAllocator() *streamIDAllocator {
	a := &streamIDAllocator{}
	a.next.Store(atomicStreamCounterStart)
	return a
}

func (a *streamIDAllocator) allocate() uint64 {
	return a.next.Add(4) - 4
}
