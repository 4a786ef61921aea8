// File: control/config.go
// Package control carries runtime configuration and metrics for the
// protocol engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Config holds the per-connection limits and timeouts. It is plain data:
// load it from YAML, override fields, and hand it to the session.

package control

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config bounds one connection's resource usage and close-handshake
// timing.
type Config struct {
	// MaxFrameSize limits a single inbound frame payload.
	MaxFrameSize int64 `yaml:"max_frame_size"`

	// MaxMessageSize limits a reassembled (and decompressed) message.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// InputBufferSize is the read-loop scratch buffer size.
	InputBufferSize int `yaml:"input_buffer_size"`

	// OutputBufferSize pre-sizes the generator scratch buffer.
	OutputBufferSize int `yaml:"output_buffer_size"`

	// CloseTimeout bounds the wait for the peer's CLOSE response after a
	// local close. Expiry is an abnormal closure.
	CloseTimeout time.Duration `yaml:"close_timeout"`

	// IdleTimeout bounds the gap between inbound reads when the
	// transport supports read deadlines. Zero disables it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// WriteTimeout bounds a single transport write when the transport
	// supports write deadlines. Zero disables it.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFrameSize:     1 << 20, // 1 MiB
		MaxMessageSize:   4 << 20, // 4 MiB
		InputBufferSize:  16 * 1024,
		OutputBufferSize: 16 * 1024,
		CloseTimeout:     5 * time.Second,
		IdleTimeout:      0,
		WriteTimeout:     10 * time.Second,
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("max_frame_size must be positive")
	}
	if c.MaxMessageSize < c.MaxFrameSize {
		return fmt.Errorf("max_message_size must be at least max_frame_size")
	}
	if c.InputBufferSize <= 0 {
		return fmt.Errorf("input_buffer_size must be positive")
	}
	if c.CloseTimeout <= 0 {
		return fmt.Errorf("close_timeout must be positive")
	}
	return nil
}
