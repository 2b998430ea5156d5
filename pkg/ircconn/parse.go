// Copyright 2024-2026 Aiku AI

package ircconn

import (
	"regexp"
	"strings"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

var (
	privmsgRe    = regexp.MustCompile(`^:([^!\s]+)!\S+ PRIVMSG (#\S+) :(.*)$`)
	formattingRe = regexp.MustCompile(`\x03(?:\d{1,2}(?:,\d{1,2})?)?|\x04(?:[0-9a-fA-F]{6}(?:,[0-9a-fA-F]{6})?)?|[\x02\x0f\x11\x16\x1d\x1e\x1f]`)
)

const ctcpDelim = "\x01"

// ParseLine parses a channel message of the form
//
//	:<nick>!<user>@<host> PRIVMSG <#channel> :<text>
//
// The sender is the prefix truncated at the first '!'. Any other line,
// including private messages to the bot itself, yields ok == false.
func ParseLine(line string) (evt chat.Event, ok bool) {
	m := privmsgRe.FindStringSubmatch(line)
	if m == nil {
		return chat.Event{}, false
	}
	return chat.Event{
		Room:   m[2],
		Sender: m[1],
		Text:   m[3],
	}, true
}

// PlainText converts IRC message text for display on another network. mIRC
// formatting codes are stripped and CTCP ACTION is rendered as "/me ...".
// Other CTCP requests (VERSION, PING, ...) are not chat and yield ok == false.
func PlainText(text string) (plain string, ok bool) {
	if strings.HasPrefix(text, ctcpDelim) {
		inner := strings.TrimSuffix(strings.TrimPrefix(text, ctcpDelim), ctcpDelim)
		action, isAction := strings.CutPrefix(inner, "ACTION ")
		if !isAction {
			return "", false
		}
		text = "/me " + action
	}
	return formattingRe.ReplaceAllString(text, ""), true
}
