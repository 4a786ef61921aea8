// File: protocol/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package protocol implements RFC 6455 base framing: the opcode and
// close-status models, the frame representation, the incremental parser
// and the frame generator. It is transport-agnostic; the session layer
// wires it to a byte stream and to the extension pipeline.
package protocol
