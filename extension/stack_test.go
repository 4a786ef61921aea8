// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// stack_test.go — pipeline ordering, registry resolution, error mapping.

package extension

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

// tracingExtension records the traversal order of both legs.
type tracingExtension struct {
	id    string
	trace *[]string
}

func (e *tracingExtension) Name() string  { return e.id }
func (e *tracingExtension) RsvMask() byte { return 0 }
func (e *tracingExtension) Init(api.ExtensionConfig, api.Behavior, Limits) error {
	return nil
}

func (e *tracingExtension) OnIncoming(f *protocol.Frame, next IncomingFrames) error {
	*e.trace = append(*e.trace, "in:"+e.id)
	return next(f)
}

func (e *tracingExtension) OnOutgoing(f *protocol.Frame, cb api.WriteCallback, next OutgoingFrames) error {
	*e.trace = append(*e.trace, "out:"+e.id)
	return next(f, cb)
}

func (e *tracingExtension) Close() error { return nil }

func TestStackTraversalOrder(t *testing.T) {
	var trace []string
	s := &Stack{exts: []Extension{
		&tracingExtension{id: "A", trace: &trace},
		&tracingExtension{id: "B", trace: &trace},
	}}

	f := protocol.NewTextFrame("x")

	// Outbound runs in negotiation order, application toward transport.
	err := s.ProcessOutgoing(f, nil, func(*protocol.Frame, api.WriteCallback) error { return nil })
	require.NoError(t, err)
	require.Equal(t, []string{"out:A", "out:B"}, trace)

	// Inbound runs in reverse, transport toward application.
	trace = nil
	err = s.ProcessIncoming(f, func(*protocol.Frame) error { return nil })
	require.NoError(t, err)
	require.Equal(t, []string{"in:B", "in:A"}, trace)
}

func TestNewStackUnknownExtension(t *testing.T) {
	_, err := NewStack(api.BehaviorServer,
		[]api.ExtensionConfig{{Name: "no-such-extension"}}, Limits{})
	require.Error(t, err)
	require.Equal(t, api.FailureExtension, api.KindOf(err))
}

func TestNewStackResolvesRegisteredNames(t *testing.T) {
	s, err := NewStack(api.BehaviorServer, []api.ExtensionConfig{
		{Name: "identity"},
		{Name: "permessage-deflate"},
	}, Limits{MaxFrameSize: 1 << 20, MaxMessageSize: 1 << 20})
	require.NoError(t, err)
	require.Equal(t, []string{"identity", "permessage-deflate"}, s.Names())
	require.Equal(t, byte(protocol.Rsv1Bit), s.RsvMask())
	require.NoError(t, s.Close())
}

// failingExtension returns a plain error from its inbound transform.
type failingExtension struct {
	tracingExtension
	err error
}

func (e *failingExtension) OnIncoming(*protocol.Frame, IncomingFrames) error {
	return e.err
}

func TestStackMapsPlainErrorsToExtensionFailure(t *testing.T) {
	cause := errors.New("codec exploded")
	var trace []string
	s := &Stack{exts: []Extension{
		&failingExtension{tracingExtension: tracingExtension{id: "F", trace: &trace}, err: cause},
	}}

	err := s.ProcessIncoming(protocol.NewTextFrame("x"), func(*protocol.Frame) error { return nil })
	require.Equal(t, api.FailureExtension, api.KindOf(err))
	require.ErrorIs(t, err, cause)
}

func TestStackPreservesWireErrorKinds(t *testing.T) {
	wire := api.NewMessageTooLargeError("inflated past limit")
	var trace []string
	s := &Stack{exts: []Extension{
		&failingExtension{tracingExtension: tracingExtension{id: "F", trace: &trace}, err: wire},
	}}

	err := s.ProcessIncoming(protocol.NewTextFrame("x"), func(*protocol.Frame) error { return nil })
	require.Equal(t, api.FailureMessageTooLarge, api.KindOf(err))
}

func TestStackCloseIsIdempotent(t *testing.T) {
	s, err := NewStack(api.BehaviorClient,
		[]api.ExtensionConfig{{Name: "identity"}}, Limits{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestEmptyStackPassesThrough(t *testing.T) {
	s, err := NewStack(api.BehaviorServer, nil, Limits{})
	require.NoError(t, err)
	require.Zero(t, s.RsvMask())

	f := protocol.NewBinaryFrame([]byte{1, 2, 3})
	var got *protocol.Frame
	require.NoError(t, s.ProcessIncoming(f, func(f *protocol.Frame) error {
		got = f
		return nil
	}))
	require.Same(t, f, got)
}
