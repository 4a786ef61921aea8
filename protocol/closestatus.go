// File: protocol/closestatus.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Close status model: RFC 6455 / IANA status codes, transmittability rules,
// and the CLOSE frame payload codec.

package protocol

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/momentics/wscore/api"
)

// Close codes per RFC 6455 section 7.4.1.
const (
	CloseNormalClosure      = 1000
	CloseGoingAway          = 1001
	CloseProtocolError      = 1002
	CloseUnsupportedData    = 1003
	CloseNoStatusRcvd       = 1005 // local sentinel: close frame carried no code
	CloseAbnormalClosure    = 1006 // local sentinel: no close frame received
	CloseInvalidPayloadData = 1007
	ClosePolicyViolation    = 1008
	CloseMessageTooBig      = 1009
	CloseMissingExtension   = 1010
	CloseInternalServerErr  = 1011
	CloseServiceRestart     = 1012
	CloseTryAgainLater      = 1013
	CloseTLSHandshake       = 1015 // local sentinel: TLS handshake failure
)

// MaxReasonLen is the longest reason phrase that fits a CLOSE payload:
// the 125-byte control limit minus the two status-code bytes.
const MaxReasonLen = MaxControlPayloadLen - 2

var closeCodeNames = map[int]string{
	CloseNormalClosure:      "NORMAL",
	CloseGoingAway:          "GOING_AWAY",
	CloseProtocolError:      "PROTOCOL",
	CloseUnsupportedData:    "BAD_DATA",
	CloseNoStatusRcvd:       "NO_CODE",
	CloseAbnormalClosure:    "NO_CLOSE",
	CloseInvalidPayloadData: "BAD_PAYLOAD",
	ClosePolicyViolation:    "POLICY_VIOLATION",
	CloseMessageTooBig:      "MESSAGE_TOO_LARGE",
	CloseMissingExtension:   "EXTENSION_ERROR",
	CloseInternalServerErr:  "SERVER_ERROR",
	CloseServiceRestart:     "SERVICE_RESTART",
	CloseTryAgainLater:      "TRY_AGAIN_LATER",
	CloseTLSHandshake:       "FAILED_TLS_HANDSHAKE",
}

// CloseCodeName returns a human-readable name for a close code.
func CloseCodeName(code int) string {
	if name, ok := closeCodeNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}

// CloseStatus is a close code plus optional reason phrase.
type CloseStatus struct {
	Code   int
	Reason string
}

// NewCloseStatus builds a CloseStatus, truncating the reason so its UTF-8
// encoding fits a CLOSE payload without splitting a multi-byte sequence.
func NewCloseStatus(code int, reason string) CloseStatus {
	if len(reason) > MaxReasonLen {
		reason = string(truncateUTF8([]byte(reason), MaxReasonLen))
	}
	return CloseStatus{Code: code, Reason: reason}
}

// IsTransmittableStatusCode reports whether the code may appear on the wire,
// honoring the RFC 6455 and IANA reserved ranges. 1005, 1006 and 1015 are
// local-only sentinels; 1004 and [1016,2999] are reserved; codes below 1000
// or at/above 5000 are never valid.
func IsTransmittableStatusCode(code int) bool {
	if code < CloseNormalClosure || code >= 5000 {
		return false
	}
	switch code {
	case 1004, CloseNoStatusRcvd, CloseAbnormalClosure, CloseTLSHandshake:
		return false
	}
	if code >= 1016 && code <= 2999 {
		return false
	}
	return true
}

// IsOrdinary reports whether the status signals an orderly closure:
// NORMAL, the no-code sentinel, or the registered/custom range.
func (s CloseStatus) IsOrdinary() bool {
	return s.Code == CloseNormalClosure || s.Code == CloseNoStatusRcvd || s.Code >= 3000
}

func (s CloseStatus) String() string {
	if s.Reason == "" {
		return CloseCodeName(s.Code)
	}
	return CloseCodeName(s.Code) + ": " + s.Reason
}

// CloseStatusFromPayload decodes a CLOSE frame payload.
// An empty payload yields the no-code sentinel. A single byte is a
// truncated status code and a payload over 125 bytes exceeds the control
// frame limit; both are protocol violations. A non-transmittable code is a
// protocol violation, while an invalid UTF-8 reason is a distinct
// bad-payload failure.
func CloseStatusFromPayload(payload []byte) (CloseStatus, error) {
	if len(payload) == 0 {
		return CloseStatus{Code: CloseNoStatusRcvd}, nil
	}
	if len(payload) == 1 {
		return CloseStatus{}, api.NewProtocolError("invalid CLOSE payload: truncated status code")
	}
	if len(payload) > MaxControlPayloadLen {
		return CloseStatus{}, api.NewProtocolError("invalid CLOSE payload length %d", len(payload))
	}

	code := int(binary.BigEndian.Uint16(payload[:2]))
	if !IsTransmittableStatusCode(code) {
		return CloseStatus{}, api.NewProtocolError("invalid CLOSE code %d", code)
	}

	reason := payload[2:]
	if !utf8.Valid(reason) {
		return CloseStatus{}, api.NewBadPayloadError("invalid UTF-8 in CLOSE reason")
	}
	return CloseStatus{Code: code, Reason: string(reason)}, nil
}

// ToPayloadBytes encodes the status as a CLOSE frame payload: big-endian
// code followed by the reason, truncated to fit at a code-point boundary.
// Non-transmittable codes cannot be encoded.
func (s CloseStatus) ToPayloadBytes() ([]byte, error) {
	if !IsTransmittableStatusCode(s.Code) {
		return nil, api.NewProtocolError("close code %d is not transmittable", s.Code)
	}
	reason := truncateUTF8([]byte(s.Reason), MaxReasonLen)
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(s.Code))
	copy(payload[2:], reason)
	return payload, nil
}

// ToFrame builds the CLOSE frame announcing this status. Sentinel codes
// produce an empty-payload CLOSE frame.
func (s CloseStatus) ToFrame() *Frame {
	if !IsTransmittableStatusCode(s.Code) {
		return NewFrame(OpcodeClose)
	}
	payload, err := s.ToPayloadBytes()
	if err != nil {
		return NewFrame(OpcodeClose)
	}
	f := NewFrame(OpcodeClose)
	f.Payload = payload
	return f
}

// truncateUTF8 cuts b to at most max bytes, dropping any trailing partial
// multi-byte sequence so the result stays valid UTF-8.
func truncateUTF8(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	n := max
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return b[:n]
}
