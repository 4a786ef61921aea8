// File: extension/deflate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// permessage-deflate (RFC 7692). Claims RSV1 on the first frame of a
// compressed message. Outbound fragments are compressed with a sync flush
// and the trailing 4-byte marker is stripped from the final fragment;
// inbound compressed fragments are buffered and re-emitted as one
// decompressed frame once the message completes. Context takeover keeps
// the sliding window across messages of the connection.

package extension

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

// deflateTail is the sync-flush marker appended by a flush and removed
// from the wire per RFC 7692 section 7.2.1.
var deflateTail = []byte{0x00, 0x00, 0xFF, 0xFF}

// maxWindowSize is the deflate sliding window retained for context
// takeover.
const maxWindowSize = 32 * 1024

type permessageDeflate struct {
	behavior api.Behavior
	limits   Limits

	compressNoContext   bool
	decompressNoContext bool

	comp    *flate.Writer
	compBuf bytes.Buffer
	dict    []byte // decompressed history for the inbound direction

	// Inbound message state.
	inCompressed bool
	inOp         protocol.OpCode
	inBuf        bytes.Buffer
}

func init() {
	Register("permessage-deflate", func() Extension { return &permessageDeflate{} })
}

func (e *permessageDeflate) Name() string { return "permessage-deflate" }

func (e *permessageDeflate) RsvMask() byte { return protocol.Rsv1Bit }

func (e *permessageDeflate) Init(cfg api.ExtensionConfig, behavior api.Behavior, limits Limits) error {
	e.behavior = behavior
	e.limits = limits

	// The "server" parameters govern the server-to-client direction, so
	// which ones bind our compressor depends on the negotiated role.
	serverNoCtx := cfg.HasParam("server_no_context_takeover")
	clientNoCtx := cfg.HasParam("client_no_context_takeover")
	if behavior == api.BehaviorServer {
		e.compressNoContext = serverNoCtx
		e.decompressNoContext = clientNoCtx
	} else {
		e.compressNoContext = clientNoCtx
		e.decompressNoContext = serverNoCtx
	}

	// compress/flate only implements a 15-bit window, so a reduced
	// window demand on our compressing side cannot be honored. The peer
	// side may shrink its window freely; decompression is unaffected.
	ownBits := "server_max_window_bits"
	if behavior == api.BehaviorClient {
		ownBits = "client_max_window_bits"
	}
	if v := cfg.Param(ownBits, ""); v != "" && v != "15" {
		return fmt.Errorf("unsupported %s=%s", ownBits, v)
	}

	w, err := flate.NewWriter(&e.compBuf, flate.DefaultCompression)
	if err != nil {
		return err
	}
	e.comp = w
	return nil
}

func (e *permessageDeflate) OnOutgoing(f *protocol.Frame, cb api.WriteCallback, next OutgoingFrames) error {
	if !f.IsData() {
		return next(f, cb)
	}

	first := f.Opcode != protocol.OpcodeContinuation
	if first && e.compressNoContext {
		e.comp.Reset(&e.compBuf)
	}

	e.compBuf.Reset()
	if _, err := e.comp.Write(f.Payload); err != nil {
		return err
	}
	if err := e.comp.Flush(); err != nil {
		return err
	}
	out := append([]byte(nil), e.compBuf.Bytes()...)

	if f.Fin {
		out = bytes.TrimSuffix(out, deflateTail)
		if len(out) == 0 {
			// An empty DEFLATE block keeps the frame payload non-empty.
			out = []byte{0x00}
		}
	}

	g := f.Copy()
	g.Payload = out
	if first {
		g.Rsv1 = true
	}
	return next(g, cb)
}

func (e *permessageDeflate) OnIncoming(f *protocol.Frame, next IncomingFrames) error {
	if !f.IsData() {
		return next(f)
	}

	if f.Opcode != protocol.OpcodeContinuation {
		e.inCompressed = f.Rsv1
		e.inOp = f.Opcode
	}
	if !e.inCompressed {
		return next(f)
	}

	e.inBuf.Write(f.Payload)
	if !f.Fin {
		// Buffered; re-emitted when the message completes.
		return nil
	}

	decompressed, err := e.inflateMessage()
	e.inBuf.Reset()
	e.inCompressed = false
	if err != nil {
		return err
	}

	g := &protocol.Frame{Fin: true, Opcode: e.inOp, Payload: decompressed}
	return next(g)
}

// inflateMessage decompresses the buffered message, enforcing the
// configured message size limit on the inflated payload and maintaining
// the sliding window when context takeover is active.
func (e *permessageDeflate) inflateMessage() ([]byte, error) {
	data := append(e.inBuf.Bytes(), deflateTail...)

	fr := flate.NewReaderDict(bytes.NewReader(data), e.dict)
	defer fr.Close()

	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(fr, e.limits.MaxMessageSize+1))
	if err != nil {
		return nil, api.NewExtensionError("corrupt deflate data", err)
	}
	if n > e.limits.MaxMessageSize {
		return nil, api.NewMessageTooLargeError("decompressed message exceeds limit %d",
			e.limits.MaxMessageSize)
	}

	payload := out.Bytes()
	if !e.decompressNoContext {
		e.dict = slideWindow(e.dict, payload)
	}
	return payload, nil
}

// slideWindow appends p to the retained history, keeping the final 32 KiB.
func slideWindow(dict, p []byte) []byte {
	dict = append(dict, p...)
	if len(dict) > maxWindowSize {
		dict = append([]byte(nil), dict[len(dict)-maxWindowSize:]...)
	}
	return dict
}

func (e *permessageDeflate) Close() error {
	e.inBuf.Reset()
	e.dict = nil
	if e.comp != nil {
		return e.comp.Close()
	}
	return nil
}
