// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// generator_test.go — wire encoding: length encodings, masking,
// validation, parser round trips.

package protocol

import (
	"bytes"
	"testing"

	"github.com/momentics/wscore/api"
)

func TestGenerateServerTextFrame(t *testing.T) {
	g := NewGenerator(api.BehaviorServer)
	out, err := g.Generate(NewTextFrame("hello"), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := append([]byte{0x81, 0x05}, []byte("hello")...)
	if !bytes.Equal(out, want) {
		t.Errorf("got % X, want % X", out, want)
	}
}

func TestGenerateShortestLengthEncoding(t *testing.T) {
	g := NewGenerator(api.BehaviorServer)
	for _, tc := range []struct {
		plen    int
		hdrLen  int
		lenByte byte
	}{
		{0, 2, 0},
		{125, 2, 125},
		{126, 4, 126},
		{65535, 4, 126},
		{65536, 10, 127},
	} {
		f := NewBinaryFrame(make([]byte, tc.plen))
		out, err := g.Generate(f, nil)
		if err != nil {
			t.Fatalf("Generate(plen=%d) failed: %v", tc.plen, err)
		}
		if len(out) != tc.hdrLen+tc.plen {
			t.Errorf("plen=%d: total %d bytes, want %d header + payload",
				tc.plen, len(out), tc.hdrLen)
		}
		if out[1] != tc.lenByte {
			t.Errorf("plen=%d: length byte 0x%02X, want 0x%02X", tc.plen, out[1], tc.lenByte)
		}
	}
}

func TestGenerateClientMasking(t *testing.T) {
	g := NewGenerator(api.BehaviorClient)
	key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
	g.keyFn = func() [4]byte { return key }

	payload := []byte("payload under mask")
	out, err := g.Generate(NewBinaryFrame(payload), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out[1]&MaskBit == 0 {
		t.Fatal("mask bit not set on client frame")
	}
	if !bytes.Equal(out[2:6], key[:]) {
		t.Fatalf("key on wire % X, want % X", out[2:6], key)
	}
	for i, b := range out[6:] {
		if b^key[i%4] != payload[i] {
			t.Fatalf("byte %d not masked correctly", i)
		}
	}
	// The input frame's payload must stay untouched.
	if !bytes.Equal(payload, []byte("payload under mask")) {
		t.Error("Generate mutated the input payload")
	}
}

func TestGenerateAppendsToScratch(t *testing.T) {
	g := NewGenerator(api.BehaviorServer)
	scratch := make([]byte, 0, 64)
	out, err := g.Generate(NewPingFrame([]byte("hi")), scratch)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if &out[0] != &scratch[:1][0] {
		t.Error("Generate reallocated despite sufficient capacity")
	}
}

func TestGenerateRejectsInvalidFrames(t *testing.T) {
	g := NewGenerator(api.BehaviorServer)

	// Control frame payload over the limit.
	if _, err := g.Generate(NewPingFrame(make([]byte, 126)), nil); api.KindOf(err) != api.FailureProtocol {
		t.Errorf("oversized ping: got %v", err)
	}

	// Fragmented control frame.
	bad := NewPingFrame(nil).WithFin(false)
	if _, err := g.Generate(bad, nil); api.KindOf(err) != api.FailureProtocol {
		t.Errorf("fragmented ping: got %v", err)
	}

	// RSV bit without a negotiated extension.
	if _, err := g.Generate(NewTextFrame("").WithRsv1(true), nil); api.KindOf(err) != api.FailureProtocol {
		t.Errorf("unclaimed rsv: got %v", err)
	}

	// Same frame passes once the bit is claimed.
	g.SetRsvMask(Rsv1Bit)
	if _, err := g.Generate(NewTextFrame("").WithRsv1(true), nil); err != nil {
		t.Errorf("claimed rsv rejected: %v", err)
	}
}

func TestGenerateParseRoundTrip(t *testing.T) {
	gen := NewGenerator(api.BehaviorClient)
	par := NewParser(api.BehaviorServer, testMaxFrame, testMaxMessage)

	frames := []*Frame{
		NewTextFrame("first"),
		NewPingFrame([]byte("ping")),
		NewBinaryFrame(bytes.Repeat([]byte{0x5A}, 70000)),
		NewPongFrame(nil),
	}

	var wire []byte
	for _, f := range frames {
		out, err := gen.Generate(f, wire)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		wire = out
	}

	var got []*Frame
	if err := par.Feed(wire, func(f *Frame) error {
		got = append(got, f)
		return nil
	}); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(got) != len(frames) {
		t.Fatalf("parsed %d frames, want %d", len(got), len(frames))
	}
	for i, f := range frames {
		if got[i].Opcode != f.Opcode || !bytes.Equal(got[i].Payload, f.Payload) {
			t.Errorf("frame %d mismatch: opcode %v len %d", i, got[i].Opcode, len(got[i].Payload))
		}
	}
}
