// File: transport/netconn.go
// Package transport adapts established network connections to the
// engine's Transport contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The engine never dials or accepts; the hosting layer performs the
// upgrade handshake and hands the raw stream here.

package transport

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/momentics/wscore/api"
)

// NetConn wraps a net.Conn as an api.Transport with idempotent close and
// deadline support.
type NetConn struct {
	conn   net.Conn
	closed int32
}

var _ api.DeadlineTransport = (*NetConn)(nil)

// NewNetConn wraps an established connection, applying TCP tuning when
// the platform supports it.
func NewNetConn(conn net.Conn) *NetConn {
	if tc, ok := conn.(*net.TCPConn); ok {
		tuneTCP(tc)
	}
	return &NetConn{conn: conn}
}

// Read fills buf from the stream.
func (n *NetConn) Read(buf []byte) (int, error) {
	return n.conn.Read(buf)
}

// Write sends buf to the stream.
func (n *NetConn) Write(buf []byte) (int, error) {
	return n.conn.Write(buf)
}

// Close releases the connection exactly once; later calls are no-ops.
func (n *NetConn) Close() error {
	if !atomic.CompareAndSwapInt32(&n.closed, 0, 1) {
		return nil
	}
	return n.conn.Close()
}

// SetReadDeadline bounds the next Read.
func (n *NetConn) SetReadDeadline(t time.Time) error {
	return n.conn.SetReadDeadline(t)
}

// SetWriteDeadline bounds the next Write.
func (n *NetConn) SetWriteDeadline(t time.Time) error {
	return n.conn.SetWriteDeadline(t)
}

// RemoteAddr reports the peer address for logging.
func (n *NetConn) RemoteAddr() net.Addr {
	return n.conn.RemoteAddr()
}
