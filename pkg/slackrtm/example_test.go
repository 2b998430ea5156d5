// Copyright 2024-2026 Aiku AI

package slackrtm_test

import (
	"context"
	"fmt"

	"github.com/aiku/irc-slack-relay/pkg/slackrtm"
	"github.com/aiku/irc-slack-relay/pkg/slackrtm/slacktest"
)

func ExampleClient_Translate() {
	srv := slacktest.NewServer("xoxb-example")
	defer srv.Close()
	srv.AddUser("U1", "bob")
	srv.AddRoom("C1", "general")

	client, err := slackrtm.New("xoxb-example", slackrtm.WithBaseURL(srv.APIURL()))
	if err != nil {
		panic(err)
	}
	evt, err := client.Translate(context.Background(), slackrtm.RawEvent{
		Channel: "C1",
		User:    "U1",
		Text:    "hi <@U1>",
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(evt.Room, evt.Sender, evt.Text)
	// Output: general bob hi @bob
}
