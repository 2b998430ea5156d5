// Copyright 2024-2026 Aiku AI

package slackrtm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

const writeWait = 10 * time.Second

// RawEvent is a realtime message frame before any ID resolution.
type RawEvent struct {
	Type    string `json:"type,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	TS      string `json:"ts,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
}

type frame struct {
	RawEvent
	// Text is a pointer here so a frame without a text field can be told
	// apart from an empty message.
	Text *string `json:"text"`
	ID   *int64  `json:"id,omitempty"`
}

type pongFrame struct {
	Type    string `json:"type"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

// RTM is an open realtime messaging session.
type RTM struct {
	conn *websocket.Conn
	self chat.Identity
	log  zerolog.Logger

	writeMu sync.Mutex
	err     error
}

// OpenRealtime calls rtm.connect and dials the returned websocket URL.
func (c *Client) OpenRealtime(ctx context.Context) (*RTM, error) {
	var resp rtmConnectResponse
	if err := c.call(ctx, "rtm.connect", nil, &resp); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if resp.URL == "" {
		return nil, &ConnectionError{Err: errors.New("rtm.connect returned no websocket URL")}
	}
	conn, _, err := c.dialer.DialContext(ctx, resp.URL, nil)
	if err != nil {
		return nil, &ConnectionError{URL: resp.URL, Err: err}
	}
	rtm := &RTM{
		conn: conn,
		self: resp.Self,
		log:  c.log.With().Str("bot_user_id", resp.Self.ID).Logger(),
	}
	conn.SetPingHandler(rtm.handlePing)
	rtm.log.Info().Str("bot_name", resp.Self.Name).Msg("Connected to Slack RTM")
	return rtm, nil
}

// Self is the bot identity reported by rtm.connect.
func (r *RTM) Self() chat.Identity {
	return r.self
}

func (r *RTM) handlePing(data string) error {
	r.log.Trace().Msg("Answering websocket ping")
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	err := r.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	var netErr net.Error
	if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return nil
	}
	return err
}

func (r *RTM) writeJSON(v any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return r.conn.WriteJSON(v)
}

// Next blocks until the next message frame. Keep-alive pings are answered
// in place and frames that lack a channel, a user or a text are skipped.
// A normal close returns io.EOF.
func (r *RTM) Next() (RawEvent, error) {
	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return RawEvent{}, io.EOF
			}
			return RawEvent{}, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var f frame
		if err = json.Unmarshal(data, &f); err != nil {
			r.log.Trace().Err(err).Msg("Dropping undecodable frame")
			continue
		}
		switch f.Type {
		case "ping":
			if err = r.writeJSON(pongFrame{Type: "pong", ReplyTo: f.ID}); err != nil {
				return RawEvent{}, err
			}
			continue
		case "", "message":
		default:
			r.log.Trace().Str("type", f.Type).Msg("Ignoring non-message frame")
			continue
		}
		if f.Channel == "" || f.User == "" || f.Text == nil {
			r.log.Trace().Bytes("frame", data).Msg("Dropping incomplete frame")
			continue
		}
		evt := f.RawEvent
		evt.Text = *f.Text
		return evt, nil
	}
}

// Events is a lazy sequence over Next. It ends on close or on the first
// read error, which is then available from Err.
func (r *RTM) Events() iter.Seq[RawEvent] {
	return func(yield func(RawEvent) bool) {
		for {
			evt, err := r.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					r.err = err
				}
				return
			}
			if !yield(evt) {
				return
			}
		}
	}
}

// Err returns the error that ended Events, if any.
func (r *RTM) Err() error {
	return r.err
}

// Close sends a close frame and tears down the socket.
func (r *RTM) Close() error {
	r.writeMu.Lock()
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	r.writeMu.Unlock()
	return r.conn.Close()
}
