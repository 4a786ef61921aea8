// File: extension/stack.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stack is the ordered, bidirectional pipeline of negotiated extensions.
// Outbound frames traverse the list in negotiation order (application to
// transport); inbound frames traverse it in reverse. The stack itself is
// stateless; serialization of traversal is owned by the session's read
// loop and flusher.

package extension

import (
	"errors"
	"sync"

	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

// Stack holds the negotiated extension instances of one connection.
type Stack struct {
	exts []Extension

	closeOnce sync.Once
	closeErr  error
}

// NewStack instantiates and initializes the negotiated extension list.
// Unknown extension tokens are an initialization error: negotiation must
// only resolve names the process has registered.
func NewStack(behavior api.Behavior, cfgs []api.ExtensionConfig, limits Limits) (*Stack, error) {
	s := &Stack{exts: make([]Extension, 0, len(cfgs))}
	for _, cfg := range cfgs {
		factory, ok := Lookup(cfg.Name)
		if !ok {
			return nil, api.NewExtensionError("unknown extension "+cfg.Name, nil)
		}
		ext := factory()
		if err := ext.Init(cfg, behavior, limits); err != nil {
			return nil, api.NewExtensionError("init of "+cfg.Name+" failed", err)
		}
		s.exts = append(s.exts, ext)
	}
	return s, nil
}

// RsvMask returns the union of reserved bits claimed by the stack.
func (s *Stack) RsvMask() byte {
	var mask byte
	for _, e := range s.exts {
		mask |= e.RsvMask()
	}
	return mask
}

// Names lists the negotiated extension tokens in order.
func (s *Stack) Names() []string {
	names := make([]string, len(s.exts))
	for i, e := range s.exts {
		names[i] = e.Name()
	}
	return names
}

// ProcessIncoming runs f through the inbound leg, transport side first,
// delivering resulting frames to deliver. Transform failures surface as
// extension errors.
func (s *Stack) ProcessIncoming(f *protocol.Frame, deliver IncomingFrames) error {
	next := deliver
	// Wrap application-side first so the outermost stage is the one
	// nearest the transport.
	for _, e := range s.exts {
		e, inner := e, next
		next = func(f *protocol.Frame) error {
			return e.OnIncoming(f, inner)
		}
	}
	return wireErr(next(f))
}

// ProcessOutgoing runs f through the outbound leg in negotiation order,
// handing resulting frames to write. The caller serializes invocations;
// two logical writes never interleave on the wire.
func (s *Stack) ProcessOutgoing(f *protocol.Frame, cb api.WriteCallback, write OutgoingFrames) error {
	next := write
	// Wrap transport-side first so the outermost stage is the one
	// nearest the application.
	for i := len(s.exts) - 1; i >= 0; i-- {
		e, inner := s.exts[i], next
		next = func(f *protocol.Frame, cb api.WriteCallback) error {
			return e.OnOutgoing(f, cb, inner)
		}
	}
	return wireErr(next(f, cb))
}

// Close releases all extension state exactly once.
func (s *Stack) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		for _, e := range s.exts {
			if err := e.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// wireErr maps non-protocol transform failures to the extension failure
// kind so they close the connection with code 1010.
func wireErr(err error) error {
	if err == nil {
		return nil
	}
	var we *api.WireError
	if errors.As(err, &we) {
		return err
	}
	return api.NewExtensionError("extension transform failed", err)
}
