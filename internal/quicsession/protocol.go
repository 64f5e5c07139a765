package quicsession

import "encoding/json"

// Inbound control-stream messages, newline-delimited JSON, per
// spec.md §4.G. cmd discriminates the payload, one envelope struct
// covering every inbound shape the way a single tagged request DTO
// would in a REST handler.
type inboundEnvelope struct {
	Cmd string `json:"cmd"`

	Token string `json:"token,omitempty"`

	TrackID  string   `json:"track_id,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Quality  string   `json:"quality,omitempty"`
	FrameMs  int      `json:"frame_ms,omitempty"`
	Queue    []string `json:"queue,omitempty"`
	TrackIDs []string `json:"track_ids,omitempty"`

	BufferMs int64  `json:"buffer_ms,omitempty"`
	TargetMs *int64 `json:"target_ms,omitempty"`

	PositionMs int64 `json:"position_ms,omitempty"`

	Ts *int64 `json:"ts,omitempty"`
}

// Outbound control-stream messages. Each has its own type so
// marshaling only ever emits the fields that message carries,
// mirroring spec.md §4.G's distinct outbound schemas.
type authOkMsg struct {
	Cmd string `json:"cmd"`
}

func newAuthOk() authOkMsg { return authOkMsg{Cmd: "auth_ok"} }

type errorMsg struct {
	Cmd     string `json:"cmd"`
	Message string `json:"message"`
}

func newError(message string) errorMsg { return errorMsg{Cmd: "error", Message: message} }

type streamMsg struct {
	Cmd      string `json:"cmd"`
	TrackID  string `json:"track_id"`
	StreamID uint64 `json:"stream_id"`
	Role     string `json:"role"`
	FrameMs  int    `json:"frame_ms"`
}

func newStreamMsg(trackID string, streamID uint64, role Role, frameMs int) streamMsg {
	return streamMsg{Cmd: "stream", TrackID: trackID, StreamID: streamID, Role: role.String(), FrameMs: frameMs}
}

type openOkMsg struct {
	Cmd     string `json:"cmd"`
	TrackID string `json:"track_id"`
}

func newOpenOk(trackID string) openOkMsg { return openOkMsg{Cmd: "open_ok", TrackID: trackID} }

type pongMsg struct {
	Cmd string `json:"cmd"`
	Ts  *int64 `json:"ts,omitempty"`
}

func newPong(ts *int64) pongMsg { return pongMsg{Cmd: "pong", Ts: ts} }

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// maxControlLineBytes bounds one control-stream line; per spec.md
// §4.G, lines beyond this discard the buffer rather than growing it
// unbounded.
const maxControlLineBytes = 64 * 1024
