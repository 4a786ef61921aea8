// File: extension/fragment.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fragment extension: splits outbound data frames whose payload exceeds a
// negotiated maximum into a CONTINUATION chain. Inbound frames pass
// through untouched; reassembly is the session's job.

package extension

import (
	"strconv"

	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

// fragmentExtension splits one logical outbound frame into several wire
// frames. The write callback rides on the final fragment so completion
// fires only after the whole logical frame is flushed.
type fragmentExtension struct {
	maxLength int
}

func init() {
	Register("fragment", func() Extension { return &fragmentExtension{} })
}

func (e *fragmentExtension) Name() string { return "fragment" }

func (e *fragmentExtension) RsvMask() byte { return 0 }

func (e *fragmentExtension) Init(cfg api.ExtensionConfig, _ api.Behavior, _ Limits) error {
	if v := cfg.Param("maxLength", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return api.ErrInvalidArgument
		}
		e.maxLength = n
	}
	return nil
}

func (e *fragmentExtension) OnIncoming(f *protocol.Frame, next IncomingFrames) error {
	return next(f)
}

func (e *fragmentExtension) OnOutgoing(f *protocol.Frame, cb api.WriteCallback, next OutgoingFrames) error {
	if e.maxLength <= 0 || !f.IsData() || len(f.Payload) <= e.maxLength {
		return next(f, cb)
	}

	payload := f.Payload
	finalFin := f.Fin
	first := true
	for len(payload) > 0 {
		take := e.maxLength
		if take > len(payload) {
			take = len(payload)
		}
		chunk := payload[:take]
		payload = payload[take:]
		last := len(payload) == 0

		frag := f.Copy()
		frag.Payload = chunk
		frag.Fin = last && finalFin
		if !first {
			frag.Opcode = protocol.OpcodeContinuation
			frag.Rsv1, frag.Rsv2, frag.Rsv3 = false, false, false
		}

		var fragCb api.WriteCallback
		if last {
			fragCb = cb
		}
		if err := next(frag, fragCb); err != nil {
			return err
		}
		first = false
	}
	return nil
}

func (e *fragmentExtension) Close() error { return nil }
