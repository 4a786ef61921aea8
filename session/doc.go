// File: session/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package session implements the connection state machine: it owns the
// read loop, the serialized outbound flusher, the close handshake with
// its bounded wait, and the terminal callback contract toward the
// application's FrameHandler.
package session
