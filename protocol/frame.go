// File: protocol/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame is the in-memory representation of one wire frame. Outbound frames
// are built with the constructors and mutators below; once handed to the
// session the engine treats them as immutable apart from masking applied
// while serializing.

package protocol

import "github.com/momentics/wscore/api"

// Frame represents a single WebSocket frame, header plus payload.
type Frame struct {
	Fin    bool
	Rsv1   bool
	Rsv2   bool
	Rsv3   bool
	Opcode OpCode

	Masked  bool
	MaskKey [4]byte

	Payload []byte
}

// NewFrame creates an empty final frame with the given opcode.
func NewFrame(op OpCode) *Frame {
	return &Frame{Fin: true, Opcode: op}
}

// NewTextFrame creates a final TEXT frame carrying s.
func NewTextFrame(s string) *Frame {
	return &Frame{Fin: true, Opcode: OpcodeText, Payload: []byte(s)}
}

// NewBinaryFrame creates a final BINARY frame carrying payload.
func NewBinaryFrame(payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: OpcodeBinary, Payload: payload}
}

// NewContinuationFrame creates a CONTINUATION fragment.
func NewContinuationFrame(payload []byte, fin bool) *Frame {
	return &Frame{Fin: fin, Opcode: OpcodeContinuation, Payload: payload}
}

// NewPingFrame creates a PING frame carrying payload.
func NewPingFrame(payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: OpcodePing, Payload: payload}
}

// NewPongFrame creates a PONG frame carrying payload.
func NewPongFrame(payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: OpcodePong, Payload: payload}
}

// WithFin sets the FIN bit while building a fragmented outbound message.
func (f *Frame) WithFin(fin bool) *Frame {
	f.Fin = fin
	return f
}

// WithRsv1 sets the RSV1 bit; meaningful only by negotiated extension
// agreement.
func (f *Frame) WithRsv1(v bool) *Frame {
	f.Rsv1 = v
	return f
}

// IsControl reports whether the frame carries a control opcode.
func (f *Frame) IsControl() bool {
	return f.Opcode.IsControl()
}

// IsData reports whether the frame carries a data opcode.
func (f *Frame) IsData() bool {
	return f.Opcode.IsData()
}

// RsvBits packs the reserved bits into header-byte positions.
func (f *Frame) RsvBits() byte {
	var bits byte
	if f.Rsv1 {
		bits |= Rsv1Bit
	}
	if f.Rsv2 {
		bits |= Rsv2Bit
	}
	if f.Rsv3 {
		bits |= Rsv3Bit
	}
	return bits
}

// Copy returns a shallow copy with its own payload slice header. The
// payload bytes are shared; extensions that rewrite payloads allocate
// their own.
func (f *Frame) Copy() *Frame {
	dup := *f
	return &dup
}

// Validate checks the frame invariants prior to serialization. rsvMask is
// the set of reserved bits claimed by negotiated extensions.
func (f *Frame) Validate(rsvMask byte) error {
	if !f.Opcode.IsKnown() {
		return api.NewProtocolError("unknown opcode 0x%X", byte(f.Opcode))
	}
	if bits := f.RsvBits(); bits&^rsvMask != 0 {
		return api.NewProtocolError("reserved bits 0x%02X set without negotiated extension", bits)
	}
	if f.IsControl() {
		if !f.Fin {
			return api.NewProtocolError("fragmented control frame %s", f.Opcode)
		}
		if len(f.Payload) > MaxControlPayloadLen {
			return api.NewProtocolError("control frame %s payload of %d bytes exceeds %d",
				f.Opcode, len(f.Payload), MaxControlPayloadLen)
		}
	}
	return nil
}
