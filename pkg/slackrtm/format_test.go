// Copyright 2024-2026 Aiku AI

package slackrtm

import (
	"context"
	"errors"
	"testing"
)

func TestPlainText(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddUser("U1", "bob")
	srv.AddRoom("C1", "general")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"entities", "a &lt;b&gt; &amp;&amp; c", "a <b> && c"},
		{"escaped entity stays literal", "&amp;lt;", "&lt;"},
		{"user mention resolved", "hi <@U1>!", "hi @bob!"},
		{"user mention with label", "hi <@U1|robert>", "hi @robert"},
		{"unknown user keeps id", "hi <@U404>", "hi @U404"},
		{"channel link with label", "see <#C2|random>", "see #random"},
		{"channel link resolved", "see <#C1>", "see #general"},
		{"special mention", "<!here> look", "@here look"},
		{"subteam", "<!subteam^S1|@ops> ping", "@ops ping"},
		{"bare url", "<https://example.com>", "https://example.com"},
		{"autolinked url", "<https://example.com|example.com>", "https://example.com"},
		{"labelled url", "<https://example.com/x|the docs>", "the docs (https://example.com/x)"},
		{"mailto", "<mailto:a@b.c|a@b.c>", "a@b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.PlainText(context.Background(), tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddUser("U1", "bob")
	srv.AddRoom("C1", "general")

	evt, err := c.Translate(context.Background(), RawEvent{Channel: "C1", User: "U1", Text: "hi &amp; bye"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if evt.Room != "general" || evt.RoomID != "C1" || evt.Sender != "bob" || evt.SenderID != "U1" {
		t.Errorf("unexpected event %+v", evt)
	}
	if evt.Text != "hi & bye" {
		t.Errorf("text = %q", evt.Text)
	}
}

func TestTranslate_PropagatesResolutionFailure(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddRoom("C1", "general")
	srv.Fail("users.info", "user_not_found")

	_, err := c.Translate(context.Background(), RawEvent{Channel: "C1", User: "U404", Text: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "user_not_found" {
		t.Fatalf("expected user_not_found, got %v", err)
	}
}
