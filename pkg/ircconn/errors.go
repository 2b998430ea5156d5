// Copyright 2024-2026 Aiku AI

package ircconn

import "fmt"

// ConnectionError is returned when the TCP connection cannot be opened or
// the registration handshake cannot be written.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("irc: connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// WriteError is returned when sending a line on an established connection fails.
type WriteError struct {
	Command string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("irc: write %s: %v", e.Command, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
