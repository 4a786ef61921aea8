// File: api/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport abstracts the raw ordered byte stream the engine receives once
// the upgrade handshake has succeeded. The engine never dials or accepts;
// the hosting layer hands it an established stream in both directions.

package api

import (
	"io"
	"time"
)

// Transport is the raw bidirectional byte stream under one connection.
// Reads are performed only from the connection's read loop; writes only
// from its serialized flusher. Close must be safe to call more than once.
type Transport interface {
	io.Reader
	io.Writer
	Close() error
}

// DeadlineTransport is implemented by transports that support read and
// write deadlines. The engine uses it to enforce the idle timeout between
// reads and to bound individual writes.
type DeadlineTransport interface {
	Transport
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}
