// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"

	"github.com/aiku/irc-slack-relay/pkg/ircconn"
	"github.com/aiku/irc-slack-relay/pkg/slackrtm"
)

// Joiner is the part of an IRC connection used during startup.
type Joiner interface {
	JoinAll(rooms []string) error
	PrivMsg(room, text string) error
}

// Start joins the bridged IRC channel and any extra channels, then sends
// the greeting if one is configured. It must complete before relaying
// starts so the bridge never posts to a channel it has not joined.
func Start(j Joiner, cfg *Config) error {
	if err := j.JoinAll(cfg.JoinRooms()); err != nil {
		return fmt.Errorf("join channels: %w", err)
	}
	if cfg.IRC.Greeting != "" {
		if err := j.PrivMsg(cfg.IRC.Channel, cfg.IRC.Greeting); err != nil {
			return fmt.Errorf("send greeting: %w", err)
		}
	}
	return nil
}

// Connect opens both networks, runs the startup sequence and returns a
// bridge ready to Run. Any connection opened before a failure is closed.
func Connect(ctx context.Context, cfg *Config, log zerolog.Logger) (*Bridge, error) {
	irc, err := ircconn.Dial(ctx, cfg.IRC.Server, cfg.IRC.Nickname,
		ircconn.WithLogger(log.With().Str("component", "irc").Logger()),
		ircconn.WithRealName(cfg.IRC.RealName),
	)
	if err != nil {
		return nil, err
	}
	slackLog := log.With().Str("component", "slack").Logger()
	slack, err := slackrtm.New(cfg.Slack.Token,
		slackrtm.WithBaseURL(cfg.Slack.APIURL),
		slackrtm.WithLogger(slackLog),
	)
	if err != nil {
		_ = irc.Close()
		return nil, err
	}
	rtm, err := slack.OpenRealtime(ctx)
	if err != nil {
		_ = irc.Close()
		return nil, err
	}
	if err = Start(irc.WriteHandle(), cfg); err != nil {
		_ = irc.Close()
		_ = rtm.Close()
		return nil, err
	}
	log.Info().
		Array("irc_channels", exzerolog.ArrayOfStrs(cfg.JoinRooms())).
		Str("slack_channel", cfg.Slack.Channel).
		Msg("Joined channels")

	ircSide := Endpoint{
		Network:    "irc",
		Source:     &IRCSource{Client: irc, Log: log.With().Str("component", "irc").Logger()},
		Poster:     &IRCPoster{Writer: irc.WriteHandle()},
		Room:       cfg.IRC.Channel,
		SplitLines: true,
	}
	slackSide := Endpoint{
		Network: "slack",
		Source:  &SlackSource{Client: slack, RTM: rtm, Log: slackLog},
		Poster:  &SlackPoster{Client: slack},
		Room:    cfg.Slack.Channel,
	}
	return NewBridge(log, ircSide, slackSide, WithClosers(irc, rtm), WithCacheSizer(slack)), nil
}
