// File: protocol/generator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame generator: serializes a Frame into wire bytes with the shortest
// length encoding that fits, masking the payload for client-role
// connections. Stateless per call aside from the caller-supplied scratch
// buffer; the input frame's logical fields are never mutated.

package protocol

import (
	crand "crypto/rand"
	"encoding/binary"

	"github.com/momentics/wscore/api"
)

// Generator encodes outbound frames for one connection role.
type Generator struct {
	behavior api.Behavior
	rsvMask  byte

	// keyFn produces masking keys; overridable in tests for
	// deterministic wire bytes.
	keyFn func() [4]byte
}

// NewGenerator creates a generator. Client-role generators mask every
// outbound frame with a fresh random key.
func NewGenerator(behavior api.Behavior) *Generator {
	return &Generator{
		behavior: behavior,
		keyFn:    randomMaskKey,
	}
}

// SetRsvMask declares the reserved bits claimed by negotiated extensions,
// permitted on outbound frames.
func (g *Generator) SetRsvMask(mask byte) {
	g.rsvMask = mask & (Rsv1Bit | Rsv2Bit | Rsv3Bit)
}

// Generate appends the wire encoding of f to dst and returns the extended
// slice. dst may be nil or a reused scratch buffer.
func (g *Generator) Generate(f *Frame, dst []byte) ([]byte, error) {
	if err := f.Validate(g.rsvMask); err != nil {
		return nil, err
	}

	masked := g.behavior == api.BehaviorClient
	plen := len(f.Payload)

	b0 := byte(f.Opcode) | f.RsvBits()
	if f.Fin {
		b0 |= FinBit
	}

	var maskBit byte
	if masked {
		maskBit = MaskBit
	}

	var hdr [MaxFrameHeaderLen]byte
	hdr[0] = b0
	n := 2
	switch {
	case plen <= MaxControlPayloadLen:
		hdr[1] = byte(plen) | maskBit
	case plen <= 0xFFFF:
		hdr[1] = 126 | maskBit
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
		n += 2
	default:
		hdr[1] = 127 | maskBit
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
		n += 8
	}

	dst = append(dst, hdr[:n]...)

	if !masked {
		return append(dst, f.Payload...), nil
	}

	key := g.keyFn()
	dst = append(dst, key[:]...)
	start := len(dst)
	dst = append(dst, f.Payload...)
	maskPayload(dst[start:], key)
	return dst, nil
}

// maskPayload applies the 4-byte key cyclically via byte-wise XOR.
func maskPayload(p []byte, key [4]byte) {
	for i := range p {
		p[i] ^= key[i%4]
	}
}

// randomMaskKey draws a fresh masking key from the system CSPRNG.
func randomMaskKey() [4]byte {
	var key [4]byte
	// rand.Read on the crypto source never fails on supported platforms.
	_, _ = crand.Read(key[:])
	return key
}
