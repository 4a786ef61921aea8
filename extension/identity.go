// File: extension/identity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package extension

import (
	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

// identityExtension passes every frame through unchanged. Useful as a
// negotiation placeholder and in pipeline tests.
type identityExtension struct{}

func init() {
	Register("identity", func() Extension { return &identityExtension{} })
}

func (identityExtension) Name() string { return "identity" }

func (identityExtension) RsvMask() byte { return 0 }

func (identityExtension) Init(api.ExtensionConfig, api.Behavior, Limits) error { return nil }

func (identityExtension) OnIncoming(f *protocol.Frame, next IncomingFrames) error {
	return next(f)
}

func (identityExtension) OnOutgoing(f *protocol.Frame, cb api.WriteCallback, next OutgoingFrames) error {
	return next(f, cb)
}

func (identityExtension) Close() error { return nil }
