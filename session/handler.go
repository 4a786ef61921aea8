// File: session/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FrameHandler is the callback contract consumed by application code.
// Per connection the engine delivers OnOpen once, then any number of
// OnFrame/OnControl calls, then exactly one terminal sequence: OnError
// followed by OnClosed for failures, or OnClosed alone for a clean
// shutdown.

package session

import (
	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

// FrameHandler receives session events. Callbacks originate from the
// session's internal goroutines; calls from the handler back into the
// session are safe and treated as concurrent.
type FrameHandler interface {
	// OnOpen fires once when the session transitions to OPEN.
	OnOpen(s *CoreSession)

	// OnFrame delivers one fully reassembled, extension-processed data
	// message as a single final frame (TEXT or BINARY).
	OnFrame(s *CoreSession, f *protocol.Frame)

	// OnControl delivers PING and PONG frames, separately from data.
	// PINGs are already answered by the engine.
	OnControl(s *CoreSession, f *protocol.Frame)

	// OnError reports the terminal failure, if any, before OnClosed.
	OnError(s *CoreSession, kind api.FailureKind, err error)

	// OnClosed fires exactly once with the resolved close status,
	// synthesized as NO_CLOSE (1006) when no CLOSE frame was exchanged.
	OnClosed(s *CoreSession, status protocol.CloseStatus)
}
