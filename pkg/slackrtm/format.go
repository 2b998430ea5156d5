// Copyright 2024-2026 Aiku AI

package slackrtm

import (
	"context"
	"regexp"
	"strings"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

var (
	markupRe = regexp.MustCompile(`<([^<>\s][^<>]*)>`)

	entityReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")
)

// PlainText converts Slack message markup to plain text. User and channel
// references without an inline label are resolved through the caches. A
// failed lookup leaves the bare ID in place.
func (c *Client) PlainText(ctx context.Context, text string) string {
	text = markupRe.ReplaceAllStringFunc(text, func(match string) string {
		target, label, hasLabel := strings.Cut(match[1:len(match)-1], "|")
		switch {
		case strings.HasPrefix(target, "@"):
			if hasLabel {
				return "@" + label
			}
			id := target[1:]
			if ident, err := c.ResolveUser(ctx, id); err == nil && ident.Name != "" {
				return "@" + ident.Name
			}
			return "@" + id
		case strings.HasPrefix(target, "#"):
			if hasLabel {
				return "#" + label
			}
			id := target[1:]
			if ident, err := c.ResolveRoom(ctx, id); err == nil && ident.Name != "" {
				return "#" + ident.Name
			}
			return "#" + id
		case strings.HasPrefix(target, "!"):
			// <!here>, <!channel>, <!subteam^S1|@team>, <!date^...|fallback>
			if hasLabel {
				return label
			}
			name, _, _ := strings.Cut(target[1:], "^")
			return "@" + name
		default:
			bare := strings.TrimPrefix(target, "mailto:")
			if !hasLabel || label == bare || label == target || strings.HasSuffix(target, "//"+label) {
				return bare
			}
			return label + " (" + target + ")"
		}
	})
	return entityReplacer.Replace(text)
}

// Translate resolves the room and sender of a raw realtime event and
// converts its text to plain text. The first resolution failure is returned
// as is.
func (c *Client) Translate(ctx context.Context, raw RawEvent) (chat.Event, error) {
	room, err := c.ResolveRoom(ctx, raw.Channel)
	if err != nil {
		return chat.Event{}, err
	}
	sender, err := c.ResolveUser(ctx, raw.User)
	if err != nil {
		return chat.Event{}, err
	}
	return chat.Event{
		Room:     room.Name,
		RoomID:   raw.Channel,
		Sender:   sender.Name,
		SenderID: raw.User,
		Text:     c.PlainText(ctx, raw.Text),
	}, nil
}
