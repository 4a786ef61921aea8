// File: extension/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide extension factory registry. Built-in extensions register
// themselves from init; embedders may add custom extensions before
// creating sessions.

package extension

import "sync"

// Factory creates a fresh extension instance for one connection.
type Factory func() Extension

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register installs a factory under the negotiated token. Registering an
// existing name replaces the previous factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Lookup returns the factory for a negotiated token.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Registered lists the known extension tokens.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
