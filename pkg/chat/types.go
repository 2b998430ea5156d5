// Copyright 2024-2026 Aiku AI

// Package chat holds the protocol-agnostic types shared by the IRC and Slack
// clients and the relay that couples them.
package chat

// Event is a single chat message observed on one of the two networks.
//
// For IRC, Room is the channel token (e.g. "#general") and Sender is the nick
// taken from the line prefix. The ID fields are left empty.
//
// For Slack, Room and Sender hold the resolved display names once the event
// has been translated, and RoomID/SenderID keep the opaque Slack IDs.
type Event struct {
	Room     string
	RoomID   string
	Sender   string
	SenderID string
	Text     string
}

// Identity is an opaque directory ID resolved to a human-readable name.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is the payload handed from one direction's receive loop to the
// opposite direction's poster. Room routing has already been decided.
type Message struct {
	Sender string
	Text   string
}

// Format renders the message the way it is posted on the other network.
func (m Message) Format() string {
	return "<" + m.Sender + "> " + m.Text
}

// MessageFromEvent strips an event down to what the poster needs.
func MessageFromEvent(evt Event) Message {
	return Message{Sender: evt.Sender, Text: evt.Text}
}
