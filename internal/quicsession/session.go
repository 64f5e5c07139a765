// Package quicsession implements the per-connection QUIC session
// manager of spec.md §4.G: one bidirectional control stream carrying
// newline-JSON messages, N server-initiated unidirectional audio
// streams with Active/Prefetch roles, a send-gate backpressure policy
// against client-reported buffer depth, and seek-triggered stream
// replacement. It owns no storage of its own; reads go through
// internal/library/reader, audio comes from internal/transcode, and
// per-session bitrate state lives in internal/quality.
package quicsession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"phonolite/internal/capability"
	"phonolite/internal/library/model"
	"phonolite/internal/library/reader"
	"phonolite/internal/quality"
	"phonolite/internal/transcode"
)

// sendGateTick is the QUIC loop's suspension period between send-gate
// sweeps, per spec.md §5.
const sendGateTick = 25 * time.Millisecond

// prefetchDepth is how many queue entries after the active track are
// kept transcoding ahead of time, per spec.md §4.G's open handler.
const prefetchDepth = 2

const defaultFrameMs = 20

// Session is one client's QUIC connection state.
type Session struct {
	conn      *quic.Conn
	id        string
	musicRoot string
	outputKind transcode.OutputKind

	reader   *reader.Reader
	auth     capability.AuthCapability
	quality  *quality.Manager
	log      *slog.Logger

	ids *streamIDAllocator

	mu           sync.Mutex
	authed       bool
	userID       string
	activeTrack  string
	queue        []string
	outgoing     map[uint64]*OutgoingStream
	trackStreams map[string]uint64

	bufferTargetMs int64
	clientBufferMs int64

	control *quic.Stream
	outbox  chan []byte
}

// Deps bundles a Session's collaborators.
type Deps struct {
	Reader     *reader.Reader
	Auth       capability.AuthCapability
	Quality    *quality.Manager
	MusicRoot  string
	OutputKind transcode.OutputKind
	Log        *slog.Logger
}

func newSession(conn *quic.Conn, deps Deps) *Session {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		conn:         conn,
		id:           conn.RemoteAddr().String(),
		musicRoot:    deps.MusicRoot,
		outputKind:   deps.OutputKind,
		reader:       deps.Reader,
		auth:         deps.Auth,
		quality:      deps.Quality,
		log:          log,
		ids:          newStreamIDAllocator(),
		outgoing:     make(map[uint64]*OutgoingStream),
		trackStreams: make(map[string]uint64),
		outbox:       make(chan []byte, 32),
	}
}

// Run drives one connection to completion: it accepts the control
// stream, dispatches inbound messages, and runs the send-gate loop
// until ctx is cancelled or the connection closes.
func (s *Session) Run(ctx context.Context) error {
	control, err := s.conn.AcceptStream(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoControlStream, err)
	}
	s.control = control

	defer func() {
		s.mu.Lock()
		for _, o := range s.outgoing {
			o.close()
		}
		s.mu.Unlock()
		if s.quality != nil {
			s.quality.Remove(s.id)
		}
	}()

	incoming := make(chan inboundEnvelope, 16)
	go s.readControlLoop(ctx, control, incoming)
	go s.writeControlLoop(ctx, control)

	ticker := time.NewTicker(sendGateTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.conn.Context().Done():
			return context.Cause(s.conn.Context())
		case env, ok := <-incoming:
			if !ok {
				return nil
			}
			s.handleMessage(ctx, env)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// readControlLoop reads newline-delimited JSON off control and
// forwards each decoded message to out. A line exceeding
// maxControlLineBytes has its buffer discarded rather than growing it
// unbounded, per spec.md §4.G; the malformed line is dropped, not the
// connection.
func (s *Session) readControlLoop(ctx context.Context, control *quic.Stream, out chan<- inboundEnvelope) {
	defer close(out)

	var buf []byte
	discarding := false
	readBuf := make([]byte, 4096)

	for {
		n, err := control.Read(readBuf)
		if n > 0 {
			chunk := readBuf[:n]
			for len(chunk) > 0 {
				i := bytes.IndexByte(chunk, '\n')
				if i < 0 {
					if !discarding {
						buf = append(buf, chunk...)
						if len(buf) > maxControlLineBytes {
							buf = buf[:0]
							discarding = true
							s.log.Debug("quicsession: discarding oversize control line", "error", ErrOversizeLine)
							s.reply(newError(ErrOversizeLine.Error()))
						}
					}
					break
				}
				line := chunk[:i]
				chunk = chunk[i+1:]

				if discarding {
					discarding = false
					continue
				}
				buf = append(buf, line...)
				if len(buf) <= maxControlLineBytes && len(buf) > 0 {
					var env inboundEnvelope
					if jsonErr := json.Unmarshal(buf, &env); jsonErr == nil {
						select {
						case out <- env:
						case <-ctx.Done():
							return
						}
					}
				}
				buf = buf[:0]
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) writeControlLoop(ctx context.Context, control *quic.Stream) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-s.outbox:
			if !ok {
				return
			}
			if _, err := control.Write(line); err != nil {
				return
			}
		}
	}
}

func (s *Session) reply(v any) {
	line, err := encodeLine(v)
	if err != nil {
		s.log.Warn("quicsession: encode reply failed", "error", err)
		return
	}
	select {
	case s.outbox <- line:
	default:
		s.log.Warn("quicsession: outbox full, dropping reply")
	}
}

func (s *Session) isAuthed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

func (s *Session) handleMessage(ctx context.Context, env inboundEnvelope) {
	switch env.Cmd {
	case "auth":
		s.handleAuth(ctx, env)
	case "open":
		s.handleOpen(ctx, env)
	case "queue":
		s.handleQueue(ctx, env)
	case "advance":
		s.handleAdvance(ctx)
	case "buffer":
		s.handleBuffer(env)
	case "seek":
		s.handleSeek(ctx, env)
	case "ping":
		s.handlePing(env)
	default:
		s.reply(newError(fmt.Sprintf("%s: %s", ErrUnknownCommand, env.Cmd)))
	}
}

func (s *Session) handleAuth(ctx context.Context, env inboundEnvelope) {
	userID, ok := s.auth.Authenticate(ctx, env.Token)
	if !ok {
		s.reply(newError("authentication failed"))
		return
	}
	s.mu.Lock()
	s.authed = true
	s.userID = userID
	s.mu.Unlock()
	s.reply(newAuthOk())
}

func (s *Session) handleBuffer(env inboundEnvelope) {
	s.mu.Lock()
	s.clientBufferMs = env.BufferMs
	if env.TargetMs != nil {
		s.bufferTargetMs = *env.TargetMs
	}
	s.mu.Unlock()

	if s.quality != nil {
		sess := s.quality.Get(s.id, time.Now())
		sess.Report(time.Now(), env.BufferMs)
	}
}

func (s *Session) handlePing(env inboundEnvelope) {
	s.reply(newPong(env.Ts))
}

// tick runs one send-gate sweep: drain every outgoing stream's
// producer channel, then flush pending bytes subject to the gate
// policy, per spec.md §4.G.
func (s *Session) tick(ctx context.Context) {
	s.mu.Lock()
	streams := make([]*OutgoingStream, 0, len(s.outgoing))
	for _, o := range s.outgoing {
		streams = append(streams, o)
	}
	bufferTarget := s.bufferTargetMs
	clientBuffer := s.clientBufferMs
	activeTrack := s.activeTrack
	s.mu.Unlock()

	gated := bufferTarget > 0 && clientBuffer >= bufferTarget

	for _, o := range streams {
		o.drain()

		if o.role == RoleActive && gated && !o.headIsSeekReset() {
			continue
		}
		if err := o.flush(); err != nil {
			s.log.Debug("quicsession: stream write failed", "stream_id", o.streamID, "error", err)
			s.removeStream(o.streamID)
			continue
		}
		if o.finished && len(o.pending) == 0 {
			s.finishStream(o, activeTrack)
		}
	}
}

// finishStream implements spec.md §4.G's deferred-close policy: the
// current Active stream for the current active track is kept open so
// a future seek can reuse its stream ID; every other finished stream
// is closed and forgotten.
func (s *Session) finishStream(o *OutgoingStream, activeTrack string) {
	if o.role == RoleActive && o.trackID == activeTrack {
		return
	}
	s.removeStream(o.streamID)
}

func (s *Session) removeStream(streamID uint64) {
	s.mu.Lock()
	o, ok := s.outgoing[streamID]
	if ok {
		delete(s.outgoing, streamID)
		if s.trackStreams[o.trackID] == streamID {
			delete(s.trackStreams, o.trackID)
		}
	}
	s.mu.Unlock()
	if ok {
		o.close()
	}
}

func (s *Session) trackFilePath(t model.Track) string {
	return filepath.Join(s.musicRoot, filepath.FromSlash(t.FileRelpath))
}

func parseMode(s string) transcode.Mode {
	if s == "fixed" {
		return transcode.ModeFixed
	}
	return transcode.ModeAuto
}

func parseQuality(s string) transcode.Quality {
	switch s {
	case "low":
		return transcode.QualityLow
	case "high":
		return transcode.QualityHigh
	default:
		return transcode.QualityMedium
	}
}
