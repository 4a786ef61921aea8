// File: protocol/utf8.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental UTF-8 validation for text messages. The validator keeps the
// state of a partially consumed multi-byte sequence so a code point split
// across frame or read-chunk boundaries is tracked rather than re-scanned.

package protocol

// utf8Validator validates a UTF-8 stream byte by byte, rejecting overlong
// encodings, surrogate code points and values above U+10FFFF per RFC 3629.
type utf8Validator struct {
	remaining int  // continuation bytes still expected
	lower     byte // inclusive bound for the next continuation byte
	upper     byte // inclusive bound for the next continuation byte
}

// consume validates the next chunk of the stream. It returns false on the
// first invalid byte; the validator is then in an undefined state until
// reset.
func (v *utf8Validator) consume(p []byte) bool {
	for _, b := range p {
		if v.remaining > 0 {
			if b < v.lower || b > v.upper {
				return false
			}
			v.remaining--
			v.lower, v.upper = 0x80, 0xBF
			continue
		}

		switch {
		case b <= 0x7F:
			// ASCII
		case b >= 0xC2 && b <= 0xDF:
			v.remaining, v.lower, v.upper = 1, 0x80, 0xBF
		case b == 0xE0:
			v.remaining, v.lower, v.upper = 2, 0xA0, 0xBF
		case b >= 0xE1 && b <= 0xEC:
			v.remaining, v.lower, v.upper = 2, 0x80, 0xBF
		case b == 0xED:
			// Exclude surrogates U+D800..U+DFFF.
			v.remaining, v.lower, v.upper = 2, 0x80, 0x9F
		case b >= 0xEE && b <= 0xEF:
			v.remaining, v.lower, v.upper = 2, 0x80, 0xBF
		case b == 0xF0:
			v.remaining, v.lower, v.upper = 3, 0x90, 0xBF
		case b >= 0xF1 && b <= 0xF3:
			v.remaining, v.lower, v.upper = 3, 0x80, 0xBF
		case b == 0xF4:
			// Cap at U+10FFFF.
			v.remaining, v.lower, v.upper = 3, 0x80, 0x8F
		default:
			// 0x80..0xC1 stray continuation or overlong lead, 0xF5..0xFF invalid.
			return false
		}
	}
	return true
}

// complete reports whether the stream ends on a code-point boundary.
func (v *utf8Validator) complete() bool {
	return v.remaining == 0
}

// reset prepares the validator for a new message.
func (v *utf8Validator) reset() {
	v.remaining = 0
	v.lower, v.upper = 0, 0
}
