// Copyright 2024-2026 Aiku AI

// Package slackrtm is a small Slack client covering what a relay needs: the
// Web API calls for directory lookups and posting, cached ID-to-name
// resolution, and the RTM websocket event stream.
package slackrtm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api/"

// maxErrorBody bounds how much of an undecodable body ends up in an error.
const maxErrorBody = 512

type options struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(base string) Option {
	return func(o *options) {
		if base != "" {
			o.baseURL = strings.TrimSuffix(base, "/") + "/"
		}
	}
}

// WithHTTPClient replaces the HTTP client used for Web API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.http = c
		}
	}
}

// WithDialer replaces the websocket dialer used by OpenRealtime.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Client talks to the Slack Web API with a single bot token. It owns the user
// and room caches, so one Client should be shared by everything that resolves
// IDs.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	log     zerolog.Logger

	users *directory
	rooms *directory
}

// New creates a client. No network call is made.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, &AuthError{Err: errors.New("empty token")}
	}
	o := options{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer:  websocket.DefaultDialer,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		token:   token,
		baseURL: o.baseURL,
		http:    o.http,
		dialer:  o.dialer,
		log:     o.log,
	}
	c.users = &directory{
		kind:    "user",
		log:     c.log,
		entries: exsync.NewMap[string, chat.Identity](),
		list:    c.ListUsers,
		get:     c.GetUser,
	}
	c.rooms = &directory{
		kind:    "room",
		log:     c.log,
		entries: exsync.NewMap[string, chat.Identity](),
		list:    c.ListRooms,
		get:     c.GetRoom,
	}
	return c, nil
}

type param struct {
	key   string
	value string
}

// buildQuery joins params as key=value pairs in the order given. Values are
// escaped here; keys are fixed API parameter names.
func buildQuery(params []param) string {
	var sb strings.Builder
	for _, p := range params {
		sb.WriteString(p.key)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
		sb.WriteByte('&')
	}
	return strings.TrimSuffix(sb.String(), "&")
}

func (c *Client) call(ctx context.Context, method string, params []param, out envelope) error {
	query := buildQuery(append([]param{{"token", c.token}}, params...))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+method+"?"+query, nil)
	if err != nil {
		return &APIError{Method: method, Err: err}
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the token, so only the underlying cause is kept.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return &APIError{Method: method, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Method: method, Err: fmt.Errorf("read body: %w", err)}
	}
	if err = json.Unmarshal(body, out); err != nil {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &APIError{Method: method, Err: fmt.Errorf("decode HTTP %d response %q: %w", resp.StatusCode, body, err)}
	}
	c.log.Trace().
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Slack API call")
	env := out.envelope()
	if env.Warning != "" {
		c.log.Debug().Str("method", method).Str("warning", env.Warning).Msg("Slack API returned a warning")
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.Error}
		if apiErr.Code == "" {
			apiErr.Err = fmt.Errorf("ok=false with HTTP %d", resp.StatusCode)
		}
		if isAuthErrorCode(env.Error) {
			return &AuthError{Err: apiErr}
		}
		return apiErr
	}
	return nil
}

// ListUsers fetches the whole user directory, following pagination cursors.
func (c *Client) ListUsers(ctx context.Context) ([]chat.Identity, error) {
	var all []chat.Identity
	cursor := ""
	for {
		params := []param{{"limit", "1000"}}
		if cursor != "" {
			params = append(params, param{"cursor", cursor})
		}
		var resp usersListResponse
		if err := c.call(ctx, "users.list", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Members...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, id string) (chat.Identity, error) {
	var resp userInfoResponse
	if err := c.call(ctx, "users.info", []param{{"user", id}}, &resp); err != nil {
		return chat.Identity{}, err
	}
	return resp.User, nil
}

// ListRooms fetches every non-archived public and private channel the bot
// can see, following pagination cursors.
func (c *Client) ListRooms(ctx context.Context) ([]chat.Identity, error) {
	var all []chat.Identity
	cursor := ""
	for {
		params := []param{
			{"types", "public_channel,private_channel"},
			{"exclude_archived", "true"},
			{"limit", "1000"},
		}
		if cursor != "" {
			params = append(params, param{"cursor", cursor})
		}
		var resp conversationsListResponse
		if err := c.call(ctx, "conversations.list", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Channels...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

// GetRoom fetches a single channel.
func (c *Client) GetRoom(ctx context.Context, id string) (chat.Identity, error) {
	var resp conversationInfoResponse
	if err := c.call(ctx, "conversations.info", []param{{"channel", id}}, &resp); err != nil {
		return chat.Identity{}, err
	}
	return resp.Channel, nil
}

// PostMessage posts text to room, which may be a channel ID or a channel name.
func (c *Client) PostMessage(ctx context.Context, room, text string) (*Ack, error) {
	var ack Ack
	params := []param{
		{"channel", room},
		{"text", text},
	}
	if err := c.call(ctx, "chat.postMessage", params, &ack); err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("channel", ack.Channel).
		Str("ts", ack.Timestamp).
		Msg("Posted message to Slack")
	return &ack, nil
}
