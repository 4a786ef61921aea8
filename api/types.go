// File: api/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Role and negotiation types handed to the engine at the upgrade boundary.

package api

// Behavior selects the connection role negotiated during the upgrade.
// The role determines masking: client-role frames are masked on the wire,
// server-role frames are not.
type Behavior int

const (
	BehaviorServer Behavior = iota
	BehaviorClient
)

func (b Behavior) String() string {
	if b == BehaviorClient {
		return "CLIENT"
	}
	return "SERVER"
}

// ExtensionConfig is one entry of the resolved extension list produced by
// the upgrade negotiation: extension token plus its negotiated parameters.
// The engine consumes the list in negotiation order.
type ExtensionConfig struct {
	Name   string
	Params map[string]string
}

// Param returns a negotiated parameter value, or def when absent.
func (c ExtensionConfig) Param(key, def string) string {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

// HasParam reports whether the parameter was present in the negotiation.
func (c ExtensionConfig) HasParam(key string) bool {
	_, ok := c.Params[key]
	return ok
}

// WriteCallback signals asynchronous completion of one outbound frame.
// A nil error means the frame bytes were handed to the transport.
// Callbacks may be nil when the caller does not need completion.
type WriteCallback func(err error)

// Notify invokes the callback if present.
func (cb WriteCallback) Notify(err error) {
	if cb != nil {
		cb(err)
	}
}
