// File: protocol/opcode.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket wire protocol opcodes and header bit constants.

package protocol

// OpCode is the 4-bit frame operation code.
type OpCode byte

const (
	OpcodeContinuation OpCode = 0x0
	OpcodeText         OpCode = 0x1
	OpcodeBinary       OpCode = 0x2
	OpcodeClose        OpCode = 0x8
	OpcodePing         OpCode = 0x9
	OpcodePong         OpCode = 0xA
)

const (
	// MaxControlPayloadLen bounds control frame payloads per RFC 6455 5.5.
	MaxControlPayloadLen = 125

	// MaxFrameHeaderLen is the largest possible header: 2 base bytes,
	// 8 extended length bytes and a 4-byte masking key.
	MaxFrameHeaderLen = 14

	// Header bit masks.
	FinBit  = 0x80
	Rsv1Bit = 0x40
	Rsv2Bit = 0x20
	Rsv3Bit = 0x10
	MaskBit = 0x80
)

// IsControl reports whether the opcode is CLOSE, PING or PONG.
func (o OpCode) IsControl() bool {
	return o == OpcodeClose || o == OpcodePing || o == OpcodePong
}

// IsData reports whether the opcode starts or continues a data message.
func (o OpCode) IsData() bool {
	return o == OpcodeContinuation || o == OpcodeText || o == OpcodeBinary
}

// IsKnown reports whether the opcode is allocated by RFC 6455.
func (o OpCode) IsKnown() bool {
	return o.IsControl() || o.IsData()
}

var opcodeNames = map[OpCode]string{
	OpcodeContinuation: "CONTINUATION",
	OpcodeText:         "TEXT",
	OpcodeBinary:       "BINARY",
	OpcodeClose:        "CLOSE",
	OpcodePing:         "PING",
	OpcodePong:         "PONG",
}

func (o OpCode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}
