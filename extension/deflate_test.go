// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// deflate_test.go — permessage-deflate: compression round trips through a
// client-side and a server-side stack, context takeover, inflation limits.

package extension

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/protocol"
)

func deflateStack(t *testing.T, behavior api.Behavior, params map[string]string, limits Limits) *Stack {
	t.Helper()
	s, err := NewStack(behavior, []api.ExtensionConfig{
		{Name: "permessage-deflate", Params: params},
	}, limits)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func defaultLimits() Limits {
	return Limits{MaxFrameSize: 1 << 20, MaxMessageSize: 1 << 20}
}

// compressFrames pushes the frames through the outbound leg and returns
// what would hit the wire.
func compressFrames(t *testing.T, s *Stack, frames ...*protocol.Frame) []*protocol.Frame {
	t.Helper()
	var wire []*protocol.Frame
	for _, f := range frames {
		err := s.ProcessOutgoing(f, nil, func(g *protocol.Frame, _ api.WriteCallback) error {
			wire = append(wire, g)
			return nil
		})
		require.NoError(t, err)
	}
	return wire
}

// decompressFrames pushes wire frames through the inbound leg and returns
// the frames delivered to the application.
func decompressFrames(t *testing.T, s *Stack, frames []*protocol.Frame) []*protocol.Frame {
	t.Helper()
	var app []*protocol.Frame
	for _, f := range frames {
		err := s.ProcessIncoming(f, func(g *protocol.Frame) error {
			app = append(app, g)
			return nil
		})
		require.NoError(t, err)
	}
	return app
}

func TestDeflateRoundTrip(t *testing.T) {
	client := deflateStack(t, api.BehaviorClient, nil, defaultLimits())
	server := deflateStack(t, api.BehaviorServer, nil, defaultLimits())

	msg := strings.Repeat("compressible payload ", 100)
	wire := compressFrames(t, client, protocol.NewTextFrame(msg))
	require.Len(t, wire, 1)
	require.True(t, wire[0].Rsv1, "compressed frame must claim RSV1")
	require.Less(t, len(wire[0].Payload), len(msg), "repetitive payload should shrink")

	app := decompressFrames(t, server, wire)
	require.Len(t, app, 1)
	require.Equal(t, protocol.OpcodeText, app[0].Opcode)
	require.True(t, app[0].Fin)
	require.False(t, app[0].Rsv1)
	require.Equal(t, msg, string(app[0].Payload))
}

func TestDeflateEmptyMessage(t *testing.T) {
	client := deflateStack(t, api.BehaviorClient, nil, defaultLimits())
	server := deflateStack(t, api.BehaviorServer, nil, defaultLimits())

	wire := compressFrames(t, client, protocol.NewTextFrame(""))
	require.Len(t, wire, 1)
	require.NotEmpty(t, wire[0].Payload, "final fragment payload must stay non-empty")

	app := decompressFrames(t, server, wire)
	require.Len(t, app, 1)
	require.Empty(t, app[0].Payload)
}

func TestDeflateFragmentedMessage(t *testing.T) {
	client := deflateStack(t, api.BehaviorClient, nil, defaultLimits())
	server := deflateStack(t, api.BehaviorServer, nil, defaultLimits())

	wire := compressFrames(t, client,
		protocol.NewTextFrame("first ").WithFin(false),
		protocol.NewContinuationFrame([]byte("second "), false),
		protocol.NewContinuationFrame([]byte("third"), true),
	)
	require.Len(t, wire, 3)
	require.True(t, wire[0].Rsv1)
	require.False(t, wire[1].Rsv1, "RSV1 belongs to the first fragment only")
	require.False(t, wire[2].Rsv1)

	// Inbound compressed fragments buffer up and re-emit as one frame.
	app := decompressFrames(t, server, wire)
	require.Len(t, app, 1)
	require.Equal(t, "first second third", string(app[0].Payload))
	require.Equal(t, protocol.OpcodeText, app[0].Opcode)
	require.True(t, app[0].Fin)
}

func TestDeflateContextTakeoverSharesWindow(t *testing.T) {
	client := deflateStack(t, api.BehaviorClient, nil, defaultLimits())
	server := deflateStack(t, api.BehaviorServer, nil, defaultLimits())

	msg := strings.Repeat("sliding window fodder ", 50)
	first := compressFrames(t, client, protocol.NewTextFrame(msg))
	second := compressFrames(t, client, protocol.NewTextFrame(msg))

	// The second copy should compress tighter: the window already holds
	// the whole message.
	require.Less(t, len(second[0].Payload), len(first[0].Payload))

	app := decompressFrames(t, server, first)
	require.Equal(t, msg, string(app[0].Payload))
	app = decompressFrames(t, server, second)
	require.Equal(t, msg, string(app[0].Payload))
}

func TestDeflateNoContextTakeover(t *testing.T) {
	params := map[string]string{
		"client_no_context_takeover": "",
		"server_no_context_takeover": "",
	}
	client := deflateStack(t, api.BehaviorClient, params, defaultLimits())
	server := deflateStack(t, api.BehaviorServer, params, defaultLimits())

	msg := strings.Repeat("no takeover ", 40)
	first := compressFrames(t, client, protocol.NewTextFrame(msg))
	second := compressFrames(t, client, protocol.NewTextFrame(msg))

	// Without takeover every message starts from an empty window.
	require.Equal(t, len(first[0].Payload), len(second[0].Payload))

	app := decompressFrames(t, server, first)
	require.Equal(t, msg, string(app[0].Payload))
	app = decompressFrames(t, server, second)
	require.Equal(t, msg, string(app[0].Payload))
}

func TestDeflateUncompressedMessagesPassThrough(t *testing.T) {
	server := deflateStack(t, api.BehaviorServer, nil, defaultLimits())

	// A data frame without RSV1 was sent uncompressed.
	f := protocol.NewTextFrame("plain")
	app := decompressFrames(t, server, []*protocol.Frame{f})
	require.Len(t, app, 1)
	require.Same(t, f, app[0])

	// Control frames bypass the codec in both directions.
	ping := protocol.NewPingFrame([]byte("ping"))
	wire := compressFrames(t, server, ping)
	require.Same(t, ping, wire[0])
}

func TestDeflateCorruptData(t *testing.T) {
	server := deflateStack(t, api.BehaviorServer, nil, defaultLimits())

	bad := &protocol.Frame{
		Fin:     true,
		Rsv1:    true,
		Opcode:  protocol.OpcodeBinary,
		Payload: []byte{0x07, 0x00, 0xDE, 0xAD}, // reserved BTYPE, never valid
	}
	err := server.ProcessIncoming(bad, func(*protocol.Frame) error { return nil })
	require.Error(t, err)
	require.Equal(t, api.FailureExtension, api.KindOf(err))
}

func TestDeflateInflationLimit(t *testing.T) {
	client := deflateStack(t, api.BehaviorClient, nil, defaultLimits())
	server := deflateStack(t, api.BehaviorServer, nil,
		Limits{MaxFrameSize: 1 << 20, MaxMessageSize: 1024})

	// Highly compressible 64 KiB message: small on the wire, over the
	// limit once inflated.
	wire := compressFrames(t, client, protocol.NewBinaryFrame(bytes.Repeat([]byte{0}, 64*1024)))
	require.Less(t, len(wire[0].Payload), 1024)

	err := server.ProcessIncoming(wire[0], func(*protocol.Frame) error { return nil })
	require.Error(t, err)
	require.Equal(t, api.FailureMessageTooLarge, api.KindOf(err))
}

func TestDeflateRejectsReducedOwnWindow(t *testing.T) {
	_, err := NewStack(api.BehaviorServer, []api.ExtensionConfig{
		{Name: "permessage-deflate", Params: map[string]string{"server_max_window_bits": "10"}},
	}, defaultLimits())
	require.Error(t, err)

	// The peer shrinking its own window is fine.
	s, err := NewStack(api.BehaviorServer, []api.ExtensionConfig{
		{Name: "permessage-deflate", Params: map[string]string{"client_max_window_bits": "10"}},
	}, defaultLimits())
	require.NoError(t, err)
	s.Close()
}
