// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/aiku/irc-slack-relay/pkg/chat"
	"github.com/aiku/irc-slack-relay/pkg/ircconn"
	"github.com/aiku/irc-slack-relay/pkg/slackrtm"
)

// ErrSourceClosed is returned by a Source whose connection ended, either
// cleanly or through a read failure. The read failure, if any, is wrapped
// alongside it.
var ErrSourceClosed = errors.New("source closed")

// sourceClosed maps the error that ended a read to ErrSourceClosed, keeping
// the cause when the close was not clean.
func sourceClosed(network string, err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", network, ErrSourceClosed)
	}
	return fmt.Errorf("%s: %w: %w", network, ErrSourceClosed, err)
}

// Source yields inbound chat events, one at a time, in arrival order.
type Source interface {
	Next(ctx context.Context) (chat.Event, error)
}

// Poster posts text into a room on the destination network.
type Poster interface {
	Post(ctx context.Context, room, text string) error
}

// IRCSource reads channel messages from an IRC connection. Formatting codes
// are stripped and CTCP ACTIONs become "/me" lines.
type IRCSource struct {
	Client *ircconn.Client
	Log    zerolog.Logger
}

func (s *IRCSource) Next(_ context.Context) (chat.Event, error) {
	for {
		evt, err := s.Client.Next()
		if err != nil {
			// A failed keep-alive reply is a write failure, not the end of
			// the inbound stream.
			var writeErr *ircconn.WriteError
			if errors.As(err, &writeErr) {
				return chat.Event{}, err
			}
			return chat.Event{}, sourceClosed("irc", err)
		}
		text, ok := ircconn.PlainText(evt.Text)
		if !ok {
			s.Log.Trace().Str("sender", evt.Sender).Msg("Dropping CTCP request")
			continue
		}
		evt.Text = text
		return evt, nil
	}
}

// IRCPoster sends PRIVMSGs through an IRC write handle.
type IRCPoster struct {
	Writer *ircconn.Writer
}

func (p *IRCPoster) Post(_ context.Context, room, text string) error {
	return p.Writer.PrivMsg(room, text)
}

// relayedSubtypes are the message subtypes that carry user text. Everything
// else (joins, edits, deletions, topic changes) is skipped.
var relayedSubtypes = map[string]bool{
	"":                 true,
	"me_message":       true,
	"thread_broadcast": true,
	"file_share":       true,
}

// SlackSource reads realtime messages and translates their IDs to names.
// Messages sent by the bot user itself are skipped so relayed posts do not
// echo back.
type SlackSource struct {
	Client *slackrtm.Client
	RTM    *slackrtm.RTM
	Log    zerolog.Logger
}

func (s *SlackSource) Next(ctx context.Context) (chat.Event, error) {
	self := s.RTM.Self().ID
	for {
		raw, err := s.RTM.Next()
		if err != nil {
			return chat.Event{}, sourceClosed("slack", err)
		}
		if raw.User == self {
			s.Log.Trace().Str("channel", raw.Channel).Msg("Skipping own message")
			continue
		}
		if !relayedSubtypes[raw.Subtype] {
			s.Log.Trace().Str("subtype", raw.Subtype).Msg("Skipping message subtype")
			continue
		}
		evt, err := s.Client.Translate(ctx, raw)
		if err != nil {
			return chat.Event{}, fmt.Errorf("translate message from %s in %s: %w", raw.User, raw.Channel, err)
		}
		if raw.Subtype == "me_message" {
			evt.Text = "/me " + evt.Text
		}
		return evt, nil
	}
}

// SlackPoster posts through chat.postMessage.
type SlackPoster struct {
	Client *slackrtm.Client
}

func (p *SlackPoster) Post(ctx context.Context, room, text string) error {
	_, err := p.Client.PostMessage(ctx, room, text)
	return err
}
