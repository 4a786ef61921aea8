//go:build linux
// +build linux

// File: transport/tuning_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux-specific socket tuning for latency-sensitive frame traffic.

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneTCP disables Nagle batching so small control frames flush promptly.
func tuneTCP(conn *net.TCPConn) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}
