//go:build !linux
// +build !linux

// File: transport/tuning_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "net"

// tuneTCP falls back to the portable net.TCPConn knob.
func tuneTCP(conn *net.TCPConn) {
	_ = conn.SetNoDelay(true)
}
