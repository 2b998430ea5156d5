// Copyright 2024-2026 Aiku AI

package slackrtm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aiku/irc-slack-relay/pkg/slackrtm/slacktest"
)

func openTestRTM(t *testing.T) (*Client, *RTM, *slacktest.Server) {
	t.Helper()
	c, srv := newTestClient(t)
	rtm, err := c.OpenRealtime(context.Background())
	if err != nil {
		t.Fatalf("OpenRealtime: %v", err)
	}
	t.Cleanup(func() { _ = rtm.Close() })
	return c, rtm, srv
}

func TestOpenRealtime_Self(t *testing.T) {
	t.Parallel()
	_, rtm, srv := openTestRTM(t)
	if rtm.Self() != srv.Self {
		t.Errorf("Self = %+v, want %+v", rtm.Self(), srv.Self)
	}
}

func TestOpenRealtime_OKFalseIsConnectionError(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.Fail("rtm.connect", "missing_scope")

	_, err := c.OpenRealtime(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T (%v)", err, err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "missing_scope" {
		t.Errorf("ConnectionError should wrap the APIError, got %v", err)
	}
}

func TestNext_DropsIncompleteFrames(t *testing.T) {
	t.Parallel()
	_, rtm, srv := openTestRTM(t)

	frames := []any{
		map[string]any{"type": "hello"},
		map[string]any{"type": "user_typing", "channel": "C1", "user": "U1"},
		map[string]any{"channel": "C1", "text": "no user"},
		map[string]any{"user": "U1", "text": "no channel"},
		map[string]any{"channel": "C1", "user": "U1"},
		map[string]any{"channel": "C1", "user": "U1", "text": "hi"},
	}
	for _, f := range frames {
		if err := srv.Send(f); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	evt, err := rtm.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if evt.Channel != "C1" || evt.User != "U1" || evt.Text != "hi" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestNext_AnswersPingsInPlace(t *testing.T) {
	t.Parallel()
	_, rtm, srv := openTestRTM(t)

	if err := srv.Ping("keepalive"); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := srv.Send(map[string]any{"type": "ping", "id": 7}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := srv.SendMessage("C1", "U1", "after ping"); err != nil {
		t.Fatal(err)
	}

	evt, err := rtm.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if evt.Text != "after ping" {
		t.Errorf("first event should be the message, got %+v", evt)
	}

	pong, err := srv.NextPong(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if pong != "keepalive" {
		t.Errorf("pong payload = %q", pong)
	}
	data, err := srv.NextFrame(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	var reply struct {
		Type    string `json:"type"`
		ReplyTo int64  `json:"reply_to"`
	}
	if err = json.Unmarshal(data, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Type != "pong" || reply.ReplyTo != 7 {
		t.Errorf("unexpected reply %s", data)
	}
}

func TestEvents_EndsOnNormalClose(t *testing.T) {
	t.Parallel()
	_, rtm, srv := openTestRTM(t)

	if err := srv.SendMessage("C1", "U1", "one"); err != nil {
		t.Fatal(err)
	}
	if err := srv.SendMessage("C1", "U2", "two"); err != nil {
		t.Fatal(err)
	}
	if err := srv.CloseRealtime(); err != nil {
		t.Fatal(err)
	}

	var texts []string
	for evt := range rtm.Events() {
		texts = append(texts, evt.Text)
	}
	if len(texts) != 2 || texts[0] != "one" || texts[1] != "two" {
		t.Errorf("texts = %v", texts)
	}
	if err := rtm.Err(); err != nil {
		t.Errorf("Err after normal close = %v", err)
	}
}
