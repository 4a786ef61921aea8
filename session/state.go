// File: session/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

// State is the connection lifecycle state.
type State int32

const (
	// StateConnecting is the initial state before Start.
	StateConnecting State = iota
	// StateOpen allows full-duplex data exchange.
	StateOpen
	// StateIShut means a CLOSE frame was received; output stays open
	// only for the close echo.
	StateIShut
	// StateOShut means a CLOSE frame was sent; input stays open while
	// awaiting the peer's CLOSE response.
	StateOShut
	// StateClosed is terminal; the transport has been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateIShut:
		return "ISHUT"
	case StateOShut:
		return "OSHUT"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
