package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lueurxax/phrase-relay-bot/internal/app"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relay-bot",
		Short: "Telegram bot that relays Duolingo phrase cards",
		Long: `relay-bot watches Telegram chats for screenshots of Duolingo phrase cards,
reads them with OCR and reposts the English and Spanish phrases as text.

Examples:
  relay-bot                  # run the bot and the health server (default)
  relay-bot scan card.jpg    # OCR a local screenshot and print the card
  relay-bot migrate          # apply card journal migrations`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runBot,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bot and the health server",
			Args:  cobra.NoArgs,
			RunE:  runBot,
		},
		&cobra.Command{
			Use:   "scan <image>",
			Short: "Recognize a local image and print the phrase card",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				application, _, err := setup()
				if err != nil {
					return err
				}

				return application.Scan(cmd.Context(), args[0], cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply card journal migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				application, _, err := setup()
				if err != nil {
					return err
				}

				return application.Migrate(cmd.Context())
			},
		},
	)

	return rootCmd
}

func runBot(cmd *cobra.Command, _ []string) error {
	application, logger, err := setup()
	if err != nil {
		return err
	}

	if err := application.RunBot(cmd.Context()); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return nil
		}

		logger.Error().Err(err).Msg("application error")

		return err
	}

	return nil
}

func setup() (*app.App, *zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	return app.New(cfg, &logger), &logger, nil
}

func newLogger(appEnv, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
