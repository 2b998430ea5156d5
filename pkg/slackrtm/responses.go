// Copyright 2024-2026 Aiku AI

package slackrtm

import "github.com/aiku/irc-slack-relay/pkg/chat"

// Response is the envelope shared by every Web API response.
type Response struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func (r *Response) envelope() *Response {
	return r
}

type envelope interface {
	envelope() *Response
}

type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

type rtmConnectResponse struct {
	Response
	URL  string        `json:"url"`
	Self chat.Identity `json:"self"`
}

type usersListResponse struct {
	Response
	Members          []chat.Identity  `json:"members"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type userInfoResponse struct {
	Response
	User chat.Identity `json:"user"`
}

type conversationsListResponse struct {
	Response
	Channels         []chat.Identity  `json:"channels"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type conversationInfoResponse struct {
	Response
	Channel chat.Identity `json:"channel"`
}

// PostedMessage is the echo of a posted message inside an Ack.
type PostedMessage struct {
	Text string `json:"text"`
	User string `json:"user,omitempty"`
	TS   string `json:"ts,omitempty"`
}

// Ack is the chat.postMessage acknowledgement.
type Ack struct {
	Response
	Channel   string        `json:"channel"`
	Timestamp string        `json:"ts"`
	Message   PostedMessage `json:"message"`
}
