// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ircconn implements a minimal line-oriented IRC client: the USER/NICK
// registration handshake, JOIN and PRIVMSG commands, transparent PING/PONG
// keep-alive, and a lazy sequence of channel messages parsed from the wire.
package ircconn

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

const (
	pingToken       = "PING"
	pongToken       = "PONG"
	defaultRealName = "irc-slack-relay"
	maxLineLength   = 64 * 1024
)

type options struct {
	log      zerolog.Logger
	realName string
	dialer   *net.Dialer
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger used for wire-level tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRealName sets the real name sent in the USER command.
func WithRealName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.realName = name
		}
	}
}

// WithDialer overrides the dialer used by Dial.
func WithDialer(d *net.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func buildOptions(opts []Option) options {
	o := options{
		log:      zerolog.Nop(),
		realName: defaultRealName,
		dialer:   &net.Dialer{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// transport is the socket shared by the read and write handles. Each line is
// written under mu so concurrent writers interleave only between frames.
type transport struct {
	conn net.Conn
	mu   sync.Mutex
}

func (t *transport) writeLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.conn, line+"\n")
	return err
}

// Writer is a write-only handle on an IRC connection.
type Writer struct {
	tr  *transport
	log zerolog.Logger
}

func (w *Writer) send(command, line string) error {
	if err := w.tr.writeLine(line); err != nil {
		return &WriteError{Command: command, Err: err}
	}
	w.log.Trace().Str("line", line).Msg("Sent line")
	return nil
}

// Join sends a JOIN for a single channel.
func (w *Writer) Join(room string) error {
	return w.send("JOIN", "JOIN "+room)
}

// JoinAll joins every channel in order and stops at the first failure.
func (w *Writer) JoinAll(rooms []string) error {
	for _, room := range rooms {
		if err := w.Join(room); err != nil {
			return err
		}
	}
	return nil
}

// PrivMsg sends a single PRIVMSG line to room. Line breaks in text are
// replaced with spaces so that one call always produces exactly one frame.
func (w *Writer) PrivMsg(room, text string) error {
	text = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text)
	return w.send("PRIVMSG", "PRIVMSG "+room+" :"+text)
}

// Client is the read side of an IRC connection plus its own Writer. Only the
// goroutine that owns the Client may call Next or range over Events.
type Client struct {
	*Writer

	nick    string
	scanner *bufio.Scanner
	err     error
}

// Dial connects to addr and performs the USER/NICK registration handshake.
func Dial(ctx context.Context, addr, nick string, opts ...Option) (*Client, error) {
	o := buildOptions(opts)
	conn, err := o.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	c := NewClient(conn, nick, opts...)
	if err := c.register(o.realName); err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	o.log.Info().Str("addr", addr).Str("nick", nick).Msg("Registered with IRC server")
	return c, nil
}

// NewClient wraps an already established connection. It does not send the
// registration handshake.
func NewClient(conn net.Conn, nick string, opts ...Option) *Client {
	o := buildOptions(opts)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	return &Client{
		Writer: &Writer{
			tr:  &transport{conn: conn},
			log: o.log,
		},
		nick:    nick,
		scanner: scanner,
	}
}

func (c *Client) register(realName string) error {
	if err := c.send("USER", "USER "+c.nick+" 0 * :"+realName); err != nil {
		return err
	}
	return c.send("NICK", "NICK "+c.nick)
}

// Nick returns the nickname the client registered with.
func (c *Client) Nick() string {
	return c.nick
}

// WriteHandle returns a write-only handle sharing this client's connection.
// It can be handed to another goroutine while the Client keeps reading.
func (c *Client) WriteHandle() *Writer {
	return c.Writer
}

// Next blocks until the next channel message arrives. Keep-alive pings are
// answered in place and never returned; lines that are not channel messages
// are dropped. Next returns io.EOF once the server closes the connection.
func (c *Client) Next() (chat.Event, error) {
	for c.scanner.Scan() {
		line := strings.TrimRight(c.scanner.Text(), "\r")
		if strings.Contains(line, pingToken) {
			if err := c.send(pongToken, strings.ReplaceAll(line, pingToken, pongToken)); err != nil {
				return chat.Event{}, err
			}
			continue
		}
		evt, ok := ParseLine(line)
		if !ok {
			c.log.Trace().Str("line", line).Msg("Dropping non-message line")
			continue
		}
		// Echo prevention: never surface our own messages.
		if evt.Sender == c.nick {
			continue
		}
		return evt, nil
	}
	if err := c.scanner.Err(); err != nil {
		return chat.Event{}, err
	}
	return chat.Event{}, io.EOF
}

// Events returns a lazy sequence of channel messages. The sequence ends when
// the connection is lost; Err reports why, or nil for a clean close.
func (c *Client) Events() iter.Seq[chat.Event] {
	return func(yield func(chat.Event) bool) {
		for {
			evt, err := c.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					c.err = err
				}
				return
			}
			if !yield(evt) {
				return
			}
		}
	}
}

// Err returns the error that ended the Events sequence, if any.
func (c *Client) Err() error {
	return c.err
}

// Close closes the underlying connection, unblocking any pending read.
func (c *Client) Close() error {
	return c.tr.conn.Close()
}
