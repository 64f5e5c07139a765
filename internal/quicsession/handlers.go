package quicsession

import (
	"context"
	"time"

	"phonolite/internal/library/model"
	"phonolite/internal/transcode"
)

// handleOpen implements spec.md §4.G's open{} handler: replace the
// active track, normalize the queue, prune dead streams, ensure an
// Active stream exists for track_id, reply, then top up the prefetch
// window.
func (s *Session) handleOpen(ctx context.Context, env inboundEnvelope) {
	if !s.isAuthed() {
		s.reply(newError(ErrUnauthorized.Error()))
		return
	}

	track, err := s.reader.GetTrack(env.TrackID)
	if err != nil {
		s.reply(newError(ErrTrackNotFound.Error()))
		return
	}

	frameMs := env.FrameMs
	if frameMs == 0 {
		frameMs = defaultFrameMs
	}
	selector := transcode.Selector{Mode: parseMode(env.Mode), Quality: parseQuality(env.Quality)}
	if s.quality != nil {
		qs := s.quality.Get(s.id, time.Now())
		selector.SharedBps = qs.SharedBitrate
	}

	s.mu.Lock()
	s.activeTrack = track.ID
	if len(env.Queue) > 0 {
		s.queue = append([]string(nil), env.Queue...)
	}
	ensureFront(&s.queue, track.ID)
	s.pruneDeadStreamsLocked()
	existingID, hasExisting := s.trackStreams[track.ID]
	if hasExisting {
		s.outgoing[existingID].role = RoleActive
	}
	queueSnapshot := append([]string(nil), s.queue...)
	s.mu.Unlock()

	var streamID uint64
	if hasExisting {
		streamID = existingID
	} else {
		o, openErr := s.openStream(ctx, track, RoleActive, 0, selector, frameMs, false)
		if openErr != nil {
			s.reply(newError("failed to start stream"))
			return
		}
		streamID = o.streamID
	}

	s.reply(newStreamMsg(track.ID, streamID, RoleActive, frameMs))
	s.reply(newOpenOk(track.ID))

	s.prefetch(ctx, queueSnapshot, track.ID, frameMs, selector)
}

func (s *Session) handleQueue(ctx context.Context, env inboundEnvelope) {
	if !s.isAuthed() {
		s.reply(newError(ErrUnauthorized.Error()))
		return
	}

	s.mu.Lock()
	s.queue = append([]string(nil), env.TrackIDs...)
	if s.activeTrack != "" {
		ensureFront(&s.queue, s.activeTrack)
	}
	s.pruneDeadStreamsLocked()
	active := s.activeTrack
	queueSnapshot := append([]string(nil), s.queue...)
	s.mu.Unlock()

	if active != "" {
		s.prefetch(ctx, queueSnapshot, active, defaultFrameMs, transcode.Selector{Mode: transcode.ModeAuto})
	}
}

func (s *Session) handleAdvance(ctx context.Context) {
	if !s.isAuthed() {
		s.reply(newError(ErrUnauthorized.Error()))
		return
	}

	s.mu.Lock()
	next := successor(s.queue, s.activeTrack)
	s.mu.Unlock()
	if next == "" {
		s.reply(newError("no next track in queue"))
		return
	}

	track, err := s.reader.GetTrack(next)
	if err != nil {
		s.reply(newError(ErrTrackNotFound.Error()))
		return
	}

	frameMs := defaultFrameMs
	selector := transcode.Selector{Mode: transcode.ModeAuto}
	if s.quality != nil {
		qs := s.quality.Get(s.id, time.Now())
		selector.SharedBps = qs.SharedBitrate
	}

	s.mu.Lock()
	s.activeTrack = track.ID
	s.pruneDeadStreamsLocked()
	existingID, hasExisting := s.trackStreams[track.ID]
	if hasExisting {
		s.outgoing[existingID].role = RoleActive
	}
	queueSnapshot := append([]string(nil), s.queue...)
	s.mu.Unlock()

	var streamID uint64
	if hasExisting {
		streamID = existingID
	} else {
		o, openErr := s.openStream(ctx, track, RoleActive, 0, selector, frameMs, false)
		if openErr != nil {
			s.reply(newError("failed to start stream"))
			return
		}
		streamID = o.streamID
	}

	s.reply(newStreamMsg(track.ID, streamID, RoleActive, frameMs))
	s.prefetch(ctx, queueSnapshot, track.ID, frameMs, selector)
}

// handleSeek implements spec.md §4.G's seek{} handler: tear down any
// existing stream for track_id and open a fresh one at position_ms,
// whose first chunk (for raw-framed output) is the 0xFFFF reset
// marker so the client drops decoder state.
func (s *Session) handleSeek(ctx context.Context, env inboundEnvelope) {
	if !s.isAuthed() {
		s.reply(newError(ErrUnauthorized.Error()))
		return
	}

	track, err := s.reader.GetTrack(env.TrackID)
	if err != nil {
		s.reply(newError(ErrTrackNotFound.Error()))
		return
	}

	s.mu.Lock()
	s.activeTrack = track.ID
	existingID, hasExisting := s.trackStreams[track.ID]
	var prior *OutgoingStream
	if hasExisting {
		prior = s.outgoing[existingID]
		delete(s.outgoing, existingID)
		delete(s.trackStreams, track.ID)
	}
	s.mu.Unlock()

	frameMs := defaultFrameMs
	selector := transcode.Selector{Mode: transcode.ModeAuto}
	if prior != nil {
		frameMs = prior.frameMs
		selector = prior.selector
		prior.close()
	}
	if s.quality != nil {
		qs := s.quality.Get(s.id, time.Now())
		selector.SharedBps = qs.SharedBitrate
	}

	o, openErr := s.openStream(ctx, track, RoleActive, uint32(env.PositionMs), selector, frameMs, true)
	if openErr != nil {
		s.reply(newError("failed to seek"))
		return
	}

	s.reply(newStreamMsg(track.ID, o.streamID, RoleActive, frameMs))
}

// openStream allocates a protocol stream ID, opens a server-initiated
// unidirectional QUIC stream, starts a transcoder Producer feeding it,
// and registers it. isSeekReplacement primes the raw-framed 0xFFFF
// marker as the first pending chunk; OggOpus output needs no
// equivalent, since its own fresh BOS page already signals a new
// logical bitstream to the client.
func (s *Session) openStream(ctx context.Context, track model.Track, role Role, startMs uint32, selector transcode.Selector, frameMs int, isSeekReplacement bool) (*OutgoingStream, error) {
	send, err := s.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}

	streamID := s.ids.allocate()
	runCtx, cancel := context.WithCancel(ctx)

	var artistName, albumName string
	if album, err := s.reader.GetAlbum(track.AlbumID); err == nil {
		albumName = album.Title
	}
	if artist, err := s.reader.GetArtist(track.ArtistID); err == nil {
		artistName = artist.Name
	}

	opts := transcode.Options{
		FilePath:   s.trackFilePath(track),
		Selector:   selector,
		FrameMs:    frameMs,
		OutputKind: s.outputKind,
		StartMs:    startMs,
		RawMeta: transcode.RawMeta{
			TrackID:    track.ID,
			Title:      track.Title,
			Artist:     artistName,
			Album:      albumName,
			DurationMs: track.DurationMs,
		},
	}
	producer := transcode.NewProducer(opts, s.log)
	rx := producer.Run(runCtx)

	o := &OutgoingStream{
		streamID: streamID,
		trackID:  track.ID,
		role:     role,
		frameMs:  frameMs,
		selector: selector,
		send:     send,
		rx:       rx,
		cancel:   cancel,
	}
	if isSeekReplacement && s.outputKind == transcode.OutputRawFramed {
		o.pending = append(o.pending, transcode.SeekResetChunk)
		o.bufferedBytes += len(transcode.SeekResetChunk)
	}

	s.mu.Lock()
	s.outgoing[streamID] = o
	s.trackStreams[track.ID] = streamID
	s.mu.Unlock()

	return o, nil
}

// prefetch ensures the next prefetchDepth queue entries after active
// each have a Prefetch-role stream, spawning one for any that lack
// one, per spec.md §4.G.
func (s *Session) prefetch(ctx context.Context, queue []string, active string, frameMs int, selector transcode.Selector) {
	upcoming := afterTrack(queue, active, prefetchDepth)
	for _, trackID := range upcoming {
		s.mu.Lock()
		_, exists := s.trackStreams[trackID]
		s.mu.Unlock()
		if exists {
			continue
		}

		track, err := s.reader.GetTrack(trackID)
		if err != nil {
			continue
		}
		if _, err := s.openStream(ctx, track, RolePrefetch, 0, selector, frameMs, false); err != nil {
			s.log.Warn("quicsession: prefetch stream failed", "track_id", trackID, "error", err)
		}
	}
}

// pruneDeadStreamsLocked closes and removes any outgoing stream whose
// track is no longer in {active} ∪ queue. Caller must hold s.mu.
func (s *Session) pruneDeadStreamsLocked() {
	keep := make(map[string]bool, len(s.queue)+1)
	if s.activeTrack != "" {
		keep[s.activeTrack] = true
	}
	for _, id := range s.queue {
		keep[id] = true
	}
	for trackID, streamID := range s.trackStreams {
		if keep[trackID] {
			continue
		}
		if o, ok := s.outgoing[streamID]; ok {
			go o.close()
			delete(s.outgoing, streamID)
		}
		delete(s.trackStreams, trackID)
	}
}

// ensureFront moves id to the front of queue, inserting it if absent.
func ensureFront(queue *[]string, id string) {
	q := *queue
	for i, v := range q {
		if v == id {
			if i == 0 {
				return
			}
			q = append(q[:i], q[i+1:]...)
			break
		}
	}
	*queue = append([]string{id}, q...)
}

// successor returns the queue entry immediately after active, or ""
// if active is absent or last.
func successor(queue []string, active string) string {
	for i, v := range queue {
		if v == active && i+1 < len(queue) {
			return queue[i+1]
		}
	}
	return ""
}

// afterTrack returns up to n queue entries following active.
func afterTrack(queue []string, active string, n int) []string {
	for i, v := range queue {
		if v == active {
			end := i + 1 + n
			if end > len(queue) {
				end = len(queue)
			}
			return queue[i+1 : end]
		}
	}
	return nil
}
