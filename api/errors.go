// File: api/errors.go
// Package api defines the contract layer shared by the protocol engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and the protocol failure taxonomy. Every terminal
// protocol failure carries a FailureKind that maps to the RFC 6455 close
// code sent on the wire (when the transport is still writable).

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrTransportClosed = fmt.Errorf("transport is closed")
	ErrSessionClosed   = fmt.Errorf("session is closed")
	ErrSessionNotOpen  = fmt.Errorf("session is not open")
	ErrCloseInProgress = fmt.Errorf("close handshake already in progress")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// FailureKind classifies terminal protocol failures.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureProtocol        // malformed framing, illegal opcode/fin/rsv, oversized control frame
	FailureBadPayload      // invalid UTF-8 in text data
	FailureMessageTooLarge // reassembled message exceeds the configured limit
	FailureExtension       // extension transform failure
	FailureAbnormal        // peer vanished or handshake timed out; local-only
	FailureInternal        // unexpected engine error
)

// CloseCode returns the RFC 6455 close code mapped to the failure kind.
// FailureAbnormal maps to 1006, which is never transmitted on the wire.
func (k FailureKind) CloseCode() int {
	switch k {
	case FailureProtocol:
		return 1002
	case FailureBadPayload:
		return 1007
	case FailureMessageTooLarge:
		return 1009
	case FailureExtension:
		return 1010
	case FailureAbnormal:
		return 1006
	default:
		return 1011
	}
}

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "NONE"
	case FailureProtocol:
		return "PROTOCOL"
	case FailureBadPayload:
		return "BAD_PAYLOAD"
	case FailureMessageTooLarge:
		return "MESSAGE_TOO_LARGE"
	case FailureExtension:
		return "EXTENSION"
	case FailureAbnormal:
		return "ABNORMAL"
	default:
		return "INTERNAL"
	}
}

// WireError is a structured protocol failure with its kind and message.
type WireError struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *WireError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *WireError) Unwrap() error {
	return e.Cause
}

// NewProtocolError reports malformed framing or illegal frame combinations.
func NewProtocolError(format string, args ...any) *WireError {
	return &WireError{Kind: FailureProtocol, Message: fmt.Sprintf(format, args...)}
}

// NewBadPayloadError reports invalid UTF-8 in text payloads.
func NewBadPayloadError(format string, args ...any) *WireError {
	return &WireError{Kind: FailureBadPayload, Message: fmt.Sprintf(format, args...)}
}

// NewMessageTooLargeError reports an oversized frame or reassembled message.
func NewMessageTooLargeError(format string, args ...any) *WireError {
	return &WireError{Kind: FailureMessageTooLarge, Message: fmt.Sprintf(format, args...)}
}

// NewExtensionError wraps a failed extension transform.
func NewExtensionError(message string, cause error) *WireError {
	return &WireError{Kind: FailureExtension, Message: message, Cause: cause}
}

// NewAbnormalError reports termination without a close-frame exchange.
func NewAbnormalError(message string, cause error) *WireError {
	return &WireError{Kind: FailureAbnormal, Message: message, Cause: cause}
}

// KindOf extracts the FailureKind from an error chain.
// Non-wire errors are classified as FailureInternal.
func KindOf(err error) FailureKind {
	var we *WireError
	if errors.As(err, &we) {
		return we.Kind
	}
	return FailureInternal
}
