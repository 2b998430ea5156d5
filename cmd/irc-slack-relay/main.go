// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command irc-slack-relay relays messages between one IRC channel and one
// Slack channel. Slack user and channel IDs are shown on IRC by name.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/exzerolog"

	"github.com/aiku/irc-slack-relay/pkg/relay"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func newRootCommand() *cobra.Command {
	var debug, logJSON bool

	cmd := &cobra.Command{
		Use:   "irc-slack-relay [config-path]",
		Short: "Relay messages between an IRC channel and a Slack channel",
		Long: "Relay messages between an IRC channel and a Slack channel.\n\n" +
			"The config file defaults to " + relay.DefaultConfigPath + " and may be JSON or YAML.\n" +
			"Every field can be overridden with " + relay.EnvPrefix + "* environment variables,\n" +
			"which are also read from a .env file in the working directory.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := relay.DefaultConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return run(cmd.Context(), path, debug, logJSON)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Write JSON logs instead of console output")
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "irc-slack-relay %s (commit %s, built %s)\n", Tag, Commit, BuildTime)
		},
	}
}

func newLogger(out io.Writer, level string, debug, logJSON bool) zerolog.Logger {
	if !logJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}
	log := zerolog.New(out).With().Timestamp().Logger()
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		} else {
			log.Warn().Str("log_level", level).Msg("Unknown log level, using info")
		}
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	log = log.Level(lvl)
	exzerolog.SetupDefaults(&log)
	return log
}

func run(ctx context.Context, path string, debug, logJSON bool) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := relay.LoadConfig(path)
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, cfg.LogLevel, debug, logJSON)
	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("config", path).
		Msg("Starting irc-slack-relay")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge, err := relay.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	if cfg.AdminAPIAddr != "" {
		go func() {
			if err := bridge.ServeAdminAPI(ctx, cfg.AdminAPIAddr); err != nil {
				log.Error().Err(err).Msg("Admin API error")
			}
		}()
	}
	return bridge.Run(ctx)
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "irc-slack-relay:", err)
		os.Exit(1)
	}
}
