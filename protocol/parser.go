// File: protocol/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental WebSocket frame parser. Input may arrive in arbitrarily
// small chunks across multiple Feed calls; partial frames leave no side
// effects outside parser state. Every rule violation latches a terminal
// failure: the parser never resynchronizes a corrupted stream.

package protocol

import (
	"encoding/binary"

	"github.com/momentics/wscore/api"
)

type parserState int

const (
	stateOpcode parserState = iota // first header byte: fin/rsv/opcode
	stateLength                    // second header byte: mask bit + 7-bit length
	stateLengthBytes               // 16-bit or 64-bit extended length
	stateMask                      // 4-byte masking key
	statePayload
)

// Parser decodes an inbound byte stream into frames.
type Parser struct {
	behavior       api.Behavior
	maxFrameSize   int64
	maxMessageSize int64
	rsvMask        byte

	failure error

	state       parserState
	frame       *Frame
	payloadLen  int64
	payloadHave int64
	lengthBuf   [8]byte
	lengthNeed  int
	lengthHave  int
	maskHave    int

	// Message assembly context across fragments.
	inMessage    bool
	messageOp    OpCode
	messageSize  int64
	validateText bool
	validator    utf8Validator
}

// NewParser creates a parser for one connection. behavior selects the
// masking rule enforced on inbound frames; maxFrameSize bounds a single
// frame payload and maxMessageSize the accumulated fragmented message.
func NewParser(behavior api.Behavior, maxFrameSize, maxMessageSize int64) *Parser {
	return &Parser{
		behavior:       behavior,
		maxFrameSize:   maxFrameSize,
		maxMessageSize: maxMessageSize,
	}
}

// SetRsvMask declares the reserved bits claimed by negotiated extensions.
// Any other rsv bit on an inbound frame is a protocol violation.
func (p *Parser) SetRsvMask(mask byte) {
	p.rsvMask = mask & (Rsv1Bit | Rsv2Bit | Rsv3Bit)
}

// Feed consumes the next chunk of the inbound stream, invoking emit for
// every completed frame. Frames are demasked in place before emission.
// Once Feed has returned an error every further call returns the same
// error.
func (p *Parser) Feed(data []byte, emit func(*Frame) error) error {
	if p.failure != nil {
		return p.failure
	}

	for {
		switch p.state {
		case stateOpcode:
			if len(data) == 0 {
				return nil
			}
			if err := p.parseOpcodeByte(data[0]); err != nil {
				return p.fail(err)
			}
			data = data[1:]
			p.state = stateLength

		case stateLength:
			if len(data) == 0 {
				return nil
			}
			if err := p.parseLengthByte(data[0]); err != nil {
				return p.fail(err)
			}
			data = data[1:]

		case stateLengthBytes:
			n := copy(p.lengthBuf[p.lengthHave:p.lengthNeed], data)
			p.lengthHave += n
			data = data[n:]
			if p.lengthHave < p.lengthNeed {
				return nil
			}
			if err := p.parseExtendedLength(); err != nil {
				return p.fail(err)
			}

		case stateMask:
			n := copy(p.frame.MaskKey[p.maskHave:], data)
			p.maskHave += n
			data = data[n:]
			if p.maskHave < 4 {
				return nil
			}
			p.state = statePayload

		case statePayload:
			if p.payloadHave == p.payloadLen {
				if err := p.completeFrame(emit); err != nil {
					return p.fail(err)
				}
				continue
			}
			if len(data) == 0 {
				return nil
			}
			take := int64(len(data))
			if remaining := p.payloadLen - p.payloadHave; take > remaining {
				take = remaining
			}
			if err := p.appendPayload(data[:take]); err != nil {
				return p.fail(err)
			}
			data = data[take:]
		}
	}
}

// fail latches the terminal failure.
func (p *Parser) fail(err error) error {
	p.failure = err
	return err
}

func (p *Parser) parseOpcodeByte(b byte) error {
	fin := b&FinBit != 0
	rsv := b & (Rsv1Bit | Rsv2Bit | Rsv3Bit)
	op := OpCode(b & 0x0F)

	if !op.IsKnown() {
		return api.NewProtocolError("unknown opcode 0x%X", byte(op))
	}
	if rsv&^p.rsvMask != 0 {
		return api.NewProtocolError("reserved bits 0x%02X set without negotiated extension", rsv)
	}
	if op.IsControl() {
		if !fin {
			return api.NewProtocolError("fragmented control frame %s", op)
		}
		if rsv != 0 {
			return api.NewProtocolError("reserved bits 0x%02X on control frame %s", rsv, op)
		}
	} else {
		if op == OpcodeContinuation && !p.inMessage {
			return api.NewProtocolError("CONTINUATION frame without unfinished message")
		}
		if op != OpcodeContinuation && p.inMessage {
			return api.NewProtocolError("new %s frame while message is still fragmented", op)
		}
	}

	// A TEXT or BINARY frame starts a new message; reset its context here
	// so the UTF-8 validator is live before payload bytes arrive.
	if op == OpcodeText || op == OpcodeBinary {
		p.messageOp = op
		p.validateText = op == OpcodeText && rsv == 0
		p.validator.reset()
	}

	p.frame = &Frame{
		Fin:    fin,
		Rsv1:   rsv&Rsv1Bit != 0,
		Rsv2:   rsv&Rsv2Bit != 0,
		Rsv3:   rsv&Rsv3Bit != 0,
		Opcode: op,
	}
	return nil
}

func (p *Parser) parseLengthByte(b byte) error {
	p.frame.Masked = b&MaskBit != 0
	len7 := int64(b & 0x7F)

	// The masking rule is asymmetric: clients mask, servers do not.
	if p.behavior == api.BehaviorServer && !p.frame.Masked {
		return api.NewProtocolError("unmasked frame from client")
	}
	if p.behavior == api.BehaviorClient && p.frame.Masked {
		return api.NewProtocolError("masked frame from server")
	}

	if p.frame.IsControl() && len7 > MaxControlPayloadLen {
		return api.NewProtocolError("control frame %s with payload length over %d",
			p.frame.Opcode, MaxControlPayloadLen)
	}

	switch len7 {
	case 126:
		p.lengthNeed, p.lengthHave = 2, 0
		p.state = stateLengthBytes
	case 127:
		p.lengthNeed, p.lengthHave = 8, 0
		p.state = stateLengthBytes
	default:
		return p.lengthKnown(len7)
	}
	return nil
}

func (p *Parser) parseExtendedLength() error {
	var length int64
	if p.lengthNeed == 2 {
		length = int64(binary.BigEndian.Uint16(p.lengthBuf[:2]))
	} else {
		v := binary.BigEndian.Uint64(p.lengthBuf[:8])
		if v&(1<<63) != 0 {
			return api.NewProtocolError("negative 64-bit payload length")
		}
		length = int64(v)
	}
	return p.lengthKnown(length)
}

// lengthKnown finishes header parsing once the payload length is resolved.
func (p *Parser) lengthKnown(length int64) error {
	if p.frame.IsData() {
		if length > p.maxFrameSize {
			return api.NewMessageTooLargeError("frame payload of %d bytes exceeds limit %d",
				length, p.maxFrameSize)
		}
		if p.messageSize+length > p.maxMessageSize {
			return api.NewMessageTooLargeError("message of %d bytes exceeds limit %d",
				p.messageSize+length, p.maxMessageSize)
		}
	}

	p.payloadLen = length
	p.payloadHave = 0
	if length > 0 {
		p.frame.Payload = make([]byte, 0, length)
	} else {
		p.frame.Payload = nil
	}

	if p.frame.Masked {
		p.maskHave = 0
		p.state = stateMask
	} else {
		p.state = statePayload
	}
	return nil
}

// appendPayload accumulates payload bytes, demasking and running the
// incremental UTF-8 check as they arrive.
func (p *Parser) appendPayload(chunk []byte) error {
	start := len(p.frame.Payload)
	p.frame.Payload = append(p.frame.Payload, chunk...)
	if p.frame.Masked {
		key := p.frame.MaskKey
		for i := start; i < len(p.frame.Payload); i++ {
			p.frame.Payload[i] ^= key[p.payloadHave%4]
			p.payloadHave++
		}
	} else {
		p.payloadHave += int64(len(chunk))
	}

	if p.textFrameNeedsValidation() {
		if !p.validator.consume(p.frame.Payload[start:]) {
			return api.NewBadPayloadError("invalid UTF-8 in text message")
		}
	}
	return nil
}

// textFrameNeedsValidation reports whether the current frame contributes
// to a text message validated at the wire level. Messages whose first
// frame carries extension rsv bits hold transformed payload and are
// validated after the extension pipeline instead.
func (p *Parser) textFrameNeedsValidation() bool {
	return p.frame.IsData() && p.messageOp == OpcodeText && p.validateText
}

func (p *Parser) completeFrame(emit func(*Frame) error) error {
	f := p.frame

	if f.IsData() {
		p.messageSize += int64(len(f.Payload))
		if f.Fin {
			if p.messageOp == OpcodeText && p.validateText && !p.validator.complete() {
				return api.NewBadPayloadError("truncated UTF-8 sequence at end of text message")
			}
			p.inMessage = false
			p.messageSize = 0
			p.validateText = false
			p.validator.reset()
		} else {
			p.inMessage = true
		}
	}

	p.frame = nil
	p.state = stateOpcode
	return emit(f)
}
