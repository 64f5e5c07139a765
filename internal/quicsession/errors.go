package quicsession

import "errors"

// Sentinel protocol/transport errors, per spec.md §7's Protocol and
// Transport error kinds. Protocol errors are replied as error{message}
// with the connection kept open; transport errors are logged and the
// connection purged.
var (
	ErrUnauthorized    = errors.New("quicsession: unauthorized")
	ErrUnknownCommand  = errors.New("quicsession: unknown command")
	ErrOversizeLine    = errors.New("quicsession: control line too large")
	ErrTrackNotFound   = errors.New("quicsession: track not found")
	ErrNoControlStream = errors.New("quicsession: no control stream")
)
