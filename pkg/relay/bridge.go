// Copyright 2024-2026 Aiku AI

// Package relay couples an IRC channel and a Slack channel. Each direction
// runs a receive loop that filters and enqueues messages and a post loop
// that drains the queue into the other network.
package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

// Endpoint is one side of the bridge.
type Endpoint struct {
	// Network names the side in logs and status, e.g. "irc".
	Network string
	Source  Source
	Poster  Poster
	// Room is the bridged room: inbound events from any other room are
	// ignored and outbound messages are posted here.
	Room string
	// SplitLines posts one line per message line, for networks where a
	// message cannot span lines.
	SplitLines bool
}

type direction struct {
	name     string
	source   Source
	poster   Poster
	fromRoom string
	toRoom   string
	split    bool
	queue    *Queue[chat.Message]
	log      zerolog.Logger

	received atomic.Int64
	filtered atomic.Int64
	posted   atomic.Int64
	running  atomic.Bool
	lastErr  atomic.Pointer[string]
}

func newDirection(from, to Endpoint, log zerolog.Logger) *direction {
	name := from.Network + "->" + to.Network
	return &direction{
		name:     name,
		source:   from.Source,
		poster:   to.Poster,
		fromRoom: from.Room,
		toRoom:   to.Room,
		split:    to.SplitLines,
		queue:    NewQueue[chat.Message](),
		log:      log.With().Str("direction", name).Logger(),
	}
}

// matchesRoom is an exact, case-sensitive comparison against either the
// display name or the opaque ID of the event's room.
func matchesRoom(evt chat.Event, room string) bool {
	return evt.Room == room || (evt.RoomID != "" && evt.RoomID == room)
}

// formatLines renders msg for posting. With split, every non-empty line of
// a multi-line message becomes its own prefixed line.
func formatLines(msg chat.Message, split bool) []string {
	if !split || !strings.ContainsAny(msg.Text, "\r\n") {
		return []string{msg.Format()}
	}
	var out []string
	for line := range strings.Lines(msg.Text) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, chat.Message{Sender: msg.Sender, Text: line}.Format())
	}
	if len(out) == 0 {
		return []string{msg.Format()}
	}
	return out
}

func (d *direction) fail(err error) error {
	msg := err.Error()
	d.lastErr.Store(&msg)
	return err
}

func (d *direction) receive(ctx context.Context) error {
	for {
		evt, err := d.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.Err(err).Msg("Receive loop stopped")
			return d.fail(err)
		}
		d.received.Add(1)
		if !matchesRoom(evt, d.fromRoom) {
			d.filtered.Add(1)
			d.log.Trace().Str("room", evt.Room).Str("sender", evt.Sender).Msg("Ignoring message from other room")
			continue
		}
		d.log.Debug().
			Str("room", evt.Room).
			Str("sender", evt.Sender).
			Str("text", evt.Text).
			Msg("Received message")
		d.queue.Push(chat.MessageFromEvent(evt))
	}
}

func (d *direction) post(ctx context.Context) error {
	for {
		msg, err := d.queue.Pop(ctx)
		if err != nil {
			return nil
		}
		for _, line := range formatLines(msg, d.split) {
			if err = d.poster.Post(ctx, d.toRoom, line); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				d.log.Err(err).Str("sender", msg.Sender).Msg("Failed to relay message")
				return d.fail(err)
			}
		}
		d.posted.Add(1)
		d.log.Info().
			Str("room", d.toRoom).
			Str("sender", msg.Sender).
			Msg("Relayed message")
	}
}

// Bridge relays messages between two endpoints.
type Bridge struct {
	log        zerolog.Logger
	session    string
	directions []*direction
	closers    []io.Closer
	closeOnce  sync.Once
	cache      CacheSizer
	startedAt  time.Time
}

// CacheSizer reports identity cache sizes for the status API.
type CacheSizer interface {
	CacheSize() (users, rooms int)
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithClosers registers connections to close when the bridge stops. Closing
// them is what unblocks sources waiting on a socket read.
func WithClosers(closers ...io.Closer) BridgeOption {
	return func(b *Bridge) { b.closers = append(b.closers, closers...) }
}

// WithCacheSizer exposes identity cache sizes in the status API.
func WithCacheSizer(c CacheSizer) BridgeOption {
	return func(b *Bridge) { b.cache = c }
}

// NewBridge creates a bridge between a and b. Each gets its own queue and
// pair of loops.
func NewBridge(log zerolog.Logger, a, b Endpoint, opts ...BridgeOption) *Bridge {
	session := uuid.NewString()
	log = log.With().Str("component", "relay").Str("session", session).Logger()
	br := &Bridge{
		log:       log,
		session:   session,
		startedAt: time.Now(),
		directions: []*direction{
			newDirection(a, b, log),
			newDirection(b, a, log),
		},
	}
	for _, opt := range opts {
		opt(br)
	}
	return br
}

// Session is the random ID attached to this bridge's log lines.
func (b *Bridge) Session() string {
	return b.session
}

func (b *Bridge) closeAll() {
	b.closeOnce.Do(func() {
		for _, c := range b.closers {
			if err := c.Close(); err != nil {
				b.log.Debug().Err(err).Msg("Error closing connection")
			}
		}
	})
}

// Run relays until either direction stops or ctx is cancelled. When one
// direction stops, the other is stopped too and the error that ended the
// first is returned. Cancelling ctx is a clean shutdown and returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, b.closeAll)
	defer stop()

	b.log.Info().Int("directions", len(b.directions)).Msg("Starting relay")
	for _, d := range b.directions {
		d.running.Store(true)
		var wg sync.WaitGroup
		wg.Add(2)
		g.Go(func() error {
			defer wg.Done()
			return d.receive(gctx)
		})
		g.Go(func() error {
			defer wg.Done()
			return d.post(gctx)
		})
		go func() {
			wg.Wait()
			d.running.Store(false)
		}()
	}
	err := g.Wait()
	b.closeAll()
	switch {
	case ctx.Err() != nil:
		b.log.Info().Msg("Relay stopped")
		return nil
	case err == nil:
		return errors.New("relay stopped without an error")
	default:
		b.log.Err(err).Msg("Relay stopped")
		return err
	}
}
