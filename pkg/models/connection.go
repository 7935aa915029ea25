package models

import (
	"fmt"
	"time"
)

// ConnectionState tracks the SSH session lifecycle. Exactly one value holds
// at any time; every transition is broadcast on the event bus.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// ConnectionConfig describes one connection attempt. It is immutable once
// handed to the session; changing credentials means a new config and a
// reconnect.
//
// RetryAttempts and RetryDelay are consumed by callers that drive a
// reconnect loop (see pkg/retry); the session itself never retries.
type ConnectionConfig struct {
	Host           string        `json:"host" yaml:"host"`
	Port           int           `json:"port" yaml:"port"`
	User           string        `json:"user" yaml:"user"`
	Password       string        `json:"-" yaml:"password"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	RetryAttempts  int           `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay     time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// Addr returns the dialable host:port, defaulting to SSH port 22.
func (c ConnectionConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}
