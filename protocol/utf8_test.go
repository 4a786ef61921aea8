// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package protocol

import "testing"

func TestUTF8ValidatorAcceptsValidStreams(t *testing.T) {
	for _, s := range []string{
		"",
		"plain ascii",
		"ωορλδ",
		"€100",
		"\U0001F600 emoji",
		"\x00 embedded nul",
		"� replacement",
		"\U0010FFFF highest code point",
	} {
		var v utf8Validator
		if !v.consume([]byte(s)) || !v.complete() {
			t.Errorf("valid string %q rejected", s)
		}
	}
}

func TestUTF8ValidatorRejectsInvalidSequences(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
	}{
		{"stray continuation", []byte{0x80}},
		{"overlong two-byte", []byte{0xC0, 0xAF}},
		{"overlong C1", []byte{0xC1, 0x80}},
		{"overlong three-byte", []byte{0xE0, 0x80, 0x80}},
		{"surrogate U+D800", []byte{0xED, 0xA0, 0x80}},
		{"surrogate U+DFFF", []byte{0xED, 0xBF, 0xBF}},
		{"overlong four-byte", []byte{0xF0, 0x80, 0x80, 0x80}},
		{"above U+10FFFF", []byte{0xF4, 0x90, 0x80, 0x80}},
		{"invalid lead F5", []byte{0xF5, 0x80, 0x80, 0x80}},
		{"invalid lead FF", []byte{0xFF}},
		{"lead then non-continuation", []byte{0xE2, 0x41}},
	} {
		var v utf8Validator
		if v.consume(tc.raw) && v.complete() {
			t.Errorf("%s: %v accepted", tc.name, tc.raw)
		}
	}
}

func TestUTF8ValidatorChunkBoundaries(t *testing.T) {
	// Four-byte emoji split one byte at a time.
	raw := []byte("\U0001F600")
	var v utf8Validator
	for i, b := range raw {
		if !v.consume([]byte{b}) {
			t.Fatalf("byte %d of split sequence rejected", i)
		}
		if wantDone := i == len(raw)-1; v.complete() != wantDone {
			t.Fatalf("complete() = %v after byte %d", v.complete(), i)
		}
	}
}

func TestUTF8ValidatorIncompleteTail(t *testing.T) {
	var v utf8Validator
	if !v.consume([]byte{'a', 0xE2, 0x82}) {
		t.Fatal("prefix rejected mid-sequence")
	}
	if v.complete() {
		t.Error("complete() true with pending continuation bytes")
	}
	v.reset()
	if !v.complete() {
		t.Error("reset validator should be complete")
	}
}
