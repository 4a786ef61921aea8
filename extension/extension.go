// File: extension/extension.go
// Package extension implements the negotiated frame transformation
// pipeline sitting between the frame codec and the session.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Extensions are modeled as a list of values implementing a capability
// interface with continuation-passing transforms, not as a subclass
// chain: each stage receives a frame plus the next stage and may pass it
// through, rewrite it, buffer it, or split it.

package extension

import (
	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

// Limits carries the connection's configured size bounds, re-enforced on
// payloads an extension inflates (e.g. decompression).
type Limits struct {
	MaxFrameSize   int64
	MaxMessageSize int64
}

// IncomingFrames is the continuation for the inbound leg: the next stage
// toward the application.
type IncomingFrames func(f *protocol.Frame) error

// OutgoingFrames is the continuation for the outbound leg: the next stage
// toward the transport. The callback travels with the frame so a stage
// that splits one logical frame can attach it to the final fragment.
type OutgoingFrames func(f *protocol.Frame, cb api.WriteCallback) error

// Extension transforms frames in both directions. An instance owns any
// codec state (e.g. a sliding compression window); its lifetime is bound
// to one connection and it is only ever invoked from that connection's
// serialized read or write path.
type Extension interface {
	// Name returns the negotiated extension token.
	Name() string

	// RsvMask returns the reserved header bits this extension claims.
	RsvMask() byte

	// Init applies the negotiated parameters. Called once before any
	// frame traverses the stack.
	Init(cfg api.ExtensionConfig, behavior api.Behavior, limits Limits) error

	// OnIncoming processes one frame moving from the transport toward
	// the application, invoking next zero or more times.
	OnIncoming(f *protocol.Frame, next IncomingFrames) error

	// OnOutgoing processes one frame moving from the application toward
	// the transport, invoking next zero or more times.
	OnOutgoing(f *protocol.Frame, cb api.WriteCallback, next OutgoingFrames) error

	// Close releases codec state. Called exactly once at teardown.
	Close() error
}
