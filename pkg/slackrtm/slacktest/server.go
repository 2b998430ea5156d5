// Copyright 2024-2026 Aiku AI

// Package slacktest provides an in-process fake of the Slack Web API and RTM
// websocket for tests. It records every Web API call and serves canned
// directory data.
package slacktest

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

// ErrNoRealtime is returned when no RTM client connects in time.
var ErrNoRealtime = errors.New("slacktest: no realtime client connected")

// Call records one Web API request.
type Call struct {
	Method string
	Params url.Values
}

// Post is a message received through chat.postMessage.
type Post struct {
	Channel string
	Text    string
}

type entry struct {
	ident    chat.Identity
	unlisted bool
}

// Server is a fake Slack. Use APIURL as the client base URL.
type Server struct {
	*httptest.Server

	Token string
	Self  chat.Identity

	mu       sync.Mutex
	calls    []Call
	posts    []Post
	users    map[string]entry
	rooms    map[string]entry
	failures map[string]string
	pageSize int
	ts       atomic.Int64

	upgrader websocket.Upgrader
	rtmConns chan *realtimeConn
	rtm      *realtimeConn
}

type realtimeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	frames  chan []byte
	pongs   chan string
}

// NewServer starts a fake accepting token. The bot identity defaults to
// U0BOT/relaybot.
func NewServer(token string) *Server {
	s := &Server{
		Token:    token,
		Self:     chat.Identity{ID: "U0BOT", Name: "relaybot"},
		users:    make(map[string]entry),
		rooms:    make(map[string]entry),
		failures: make(map[string]string),
		rtmConns: make(chan *realtimeConn, 4),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", s.handleAPI)
	mux.HandleFunc("/rtm", s.handleRealtime)
	s.Server = httptest.NewServer(mux)
	return s
}

// APIURL is the Web API root to pass to slackrtm.WithBaseURL.
func (s *Server) APIURL() string {
	return s.URL + "/api/"
}

// AddUser adds a user returned by both users.list and users.info.
func (s *Server) AddUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = entry{ident: chat.Identity{ID: id, Name: name}}
}

// AddUnlistedUser adds a user that only users.info knows about.
func (s *Server) AddUnlistedUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = entry{ident: chat.Identity{ID: id, Name: name}, unlisted: true}
}

// AddRoom adds a channel returned by both conversations.list and
// conversations.info.
func (s *Server) AddRoom(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = entry{ident: chat.Identity{ID: id, Name: name}}
}

// AddUnlistedRoom adds a channel that only conversations.info knows about.
func (s *Server) AddUnlistedRoom(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = entry{ident: chat.Identity{ID: id, Name: name}, unlisted: true}
}

// Fail makes every later call to method answer ok:false with code.
func (s *Server) Fail(method, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = code
}

// SetPageSize makes users.list and conversations.list return at most n
// entries per call, with a next_cursor pointing at the rest. Zero returns
// everything at once.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Calls returns a copy of the recorded Web API calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallCount counts recorded calls to method.
func (s *Server) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Posts returns a copy of the messages posted so far.
func (s *Server) Posts() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.posts)
}

type response map[string]any

func (s *Server) writeJSON(w http.ResponseWriter, v response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func listed(m map[string]entry) []chat.Identity {
	var out []chat.Identity
	for _, id := range slices.Sorted(maps.Keys(m)) {
		if !m[id].unlisted {
			out = append(out, m[id].ident)
		}
	}
	return out
}

// page cuts the listing at the offset carried in cursor and returns the
// cursor of the following page, or "" for the last one.
func (s *Server) page(all []chat.Identity, cursor string) ([]chat.Identity, string, bool) {
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(all) {
			return nil, "", false
		}
		start = n
	}
	if s.pageSize <= 0 || start+s.pageSize >= len(all) {
		return all[start:], "", true
	}
	end := start + s.pageSize
	return all[start:end], strconv.Itoa(end), true
}

func (s *Server) writeList(w http.ResponseWriter, key string, all []chat.Identity, cursor string) {
	items, next, ok := s.page(all, cursor)
	if !ok {
		s.writeJSON(w, response{"ok": false, "error": "invalid_cursor"})
		return
	}
	if items == nil {
		items = []chat.Identity{}
	}
	s.writeJSON(w, response{
		"ok":                true,
		key:                 items,
		"response_metadata": response{"next_cursor": next},
	})
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/api/")
	params := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, Params: params})

	if params.Get("token") != s.Token {
		s.writeJSON(w, response{"ok": false, "error": "invalid_auth"})
		return
	}
	if code, ok := s.failures[method]; ok {
		s.writeJSON(w, response{"ok": false, "error": code})
		return
	}

	switch method {
	case "rtm.connect":
		wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/rtm"
		s.writeJSON(w, response{"ok": true, "url": wsURL, "self": s.Self})
	case "users.list":
		s.writeList(w, "members", listed(s.users), params.Get("cursor"))
	case "users.info":
		if e, ok := s.users[params.Get("user")]; ok {
			s.writeJSON(w, response{"ok": true, "user": e.ident})
		} else {
			s.writeJSON(w, response{"ok": false, "error": "user_not_found"})
		}
	case "conversations.list":
		s.writeList(w, "channels", listed(s.rooms), params.Get("cursor"))
	case "conversations.info":
		if e, ok := s.rooms[params.Get("channel")]; ok {
			s.writeJSON(w, response{"ok": true, "channel": e.ident})
		} else {
			s.writeJSON(w, response{"ok": false, "error": "channel_not_found"})
		}
	case "chat.postMessage":
		post := Post{Channel: params.Get("channel"), Text: params.Get("text")}
		s.posts = append(s.posts, post)
		ts := "1700000000." + strconv.FormatInt(100000+s.ts.Add(1), 10)
		s.writeJSON(w, response{
			"ok":      true,
			"channel": post.Channel,
			"ts":      ts,
			"message": response{"text": post.Text, "user": s.Self.ID, "ts": ts},
		})
	default:
		s.writeJSON(w, response{"ok": false, "error": "unknown_method"})
	}
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	rc := &realtimeConn{
		conn:   conn,
		frames: make(chan []byte, 64),
		pongs:  make(chan string, 16),
	}
	conn.SetPongHandler(func(data string) error {
		select {
		case rc.pongs <- data:
		default:
		}
		return nil
	})
	go func() {
		defer close(rc.frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case rc.frames <- data:
			default:
			}
		}
	}()
	s.rtmConns <- rc
}

func (s *Server) realtime(timeout time.Duration) (*realtimeConn, error) {
	s.mu.Lock()
	rc := s.rtm
	s.mu.Unlock()
	if rc != nil {
		return rc, nil
	}
	select {
	case rc = <-s.rtmConns:
		s.mu.Lock()
		s.rtm = rc
		s.mu.Unlock()
		return rc, nil
	case <-time.After(timeout):
		return nil, ErrNoRealtime
	}
}

// Send writes v as a JSON text frame to the connected RTM client, waiting up
// to five seconds for one to connect.
func (s *Server) Send(v any) error {
	rc, err := s.realtime(5 * time.Second)
	if err != nil {
		return err
	}
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	return rc.conn.WriteJSON(v)
}

// SendMessage sends a message frame from user in channel.
func (s *Server) SendMessage(channel, user, text string) error {
	return s.Send(response{"type": "message", "channel": channel, "user": user, "text": text})
}

// Ping sends a websocket ping control frame.
func (s *Server) Ping(data string) error {
	rc, err := s.realtime(5 * time.Second)
	if err != nil {
		return err
	}
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	return rc.conn.WriteControl(websocket.PingMessage, []byte(data), time.Now().Add(5*time.Second))
}

// NextPong waits for the pong answering a Ping.
func (s *Server) NextPong(timeout time.Duration) (string, error) {
	rc, err := s.realtime(timeout)
	if err != nil {
		return "", err
	}
	select {
	case data := <-rc.pongs:
		return data, nil
	case <-time.After(timeout):
		return "", errors.New("slacktest: no pong received")
	}
}

// NextFrame waits for the next text frame written by the client.
func (s *Server) NextFrame(timeout time.Duration) ([]byte, error) {
	rc, err := s.realtime(timeout)
	if err != nil {
		return nil, err
	}
	select {
	case data, ok := <-rc.frames:
		if !ok {
			return nil, errors.New("slacktest: realtime connection closed")
		}
		return data, nil
	case <-time.After(timeout):
		return nil, errors.New("slacktest: no frame received")
	}
}

// DropRealtime closes the RTM socket without a close frame, as a network
// failure would.
func (s *Server) DropRealtime() error {
	rc, err := s.realtime(5 * time.Second)
	if err != nil {
		return err
	}
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	return rc.conn.NetConn().Close()
}

// CloseRealtime sends a normal close frame and drops the RTM connection.
func (s *Server) CloseRealtime() error {
	rc, err := s.realtime(5 * time.Second)
	if err != nil {
		return err
	}
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	_ = rc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	return rc.conn.Close()
}
