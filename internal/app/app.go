// Package app wires the relay bot together and exposes its run modes:
//
//   - Bot mode: Telegram update loop plus the health server
//   - Scan mode: one-off OCR and parse of a local image for operators
//   - Migrate mode: apply card journal migrations and exit
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/phrase-relay-bot/internal/bot"
	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
	"github.com/lueurxax/phrase-relay-bot/internal/core/ocr"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/config"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/observability"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/worker"
	"github.com/lueurxax/phrase-relay-bot/internal/process/flashcard"
	"github.com/lueurxax/phrase-relay-bot/internal/process/pipeline"
	db "github.com/lueurxax/phrase-relay-bot/internal/storage"
)

const (
	errBotInit           = "bot initialization failed: %w"
	journalPruneInterval = time.Hour
)

// journalPruner deletes old journal rows.
type journalPruner interface {
	PruneCardsBefore(ctx context.Context, before time.Time) (int64, error)
}

// App holds the configuration and logger shared by every mode.
type App struct {
	cfg    *config.Config
	logger *zerolog.Logger
}

func New(cfg *config.Config, logger *zerolog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// RunBot runs the update loop and the health server until ctx is canceled or
// either of them fails.
func (a *App) RunBot(ctx context.Context) error {
	engine, err := ocr.New(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf(errBotInit, err)
	}

	defer a.closeEngine(engine)

	database, err := a.openJournal(ctx)
	if err != nil {
		return fmt.Errorf(errBotInit, err)
	}

	var (
		journal pipeline.Journal
		history bot.CardHistory
		pinger  observability.Pinger
	)

	if database != nil {
		defer database.Close()

		journal, history, pinger = database, database, database
	}

	api, err := bot.NewAPI(a.cfg.BotToken)
	if err != nil {
		return fmt.Errorf(errBotInit, err)
	}

	a.logger.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	client := bot.NewClient(api, a.cfg.SendRPS, a.cfg.SendBurst, a.logger)
	target := bot.NewDestination(a.cfg.TargetGroupID)

	relay := pipeline.New(client, engine, client, target, journal, a.pipelineOptions(), a.logger)
	b := bot.New(client, relay, target, engine, history, a.logger)
	health := observability.NewServer(a.cfg.Port, a.cfg.HealthMaxConns, pinger, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return health.Start(gctx)
	})

	g.Go(func() error {
		return b.Run(gctx)
	})

	if database != nil && a.cfg.JournalRetention > 0 {
		g.Go(func() error {
			return worker.TickerLoop(gctx, worker.TickerConfig{
				Name:       "journal-retention",
				Interval:   journalPruneInterval,
				RunOnStart: true,
				OnTick:     a.pruneJournal(database),
				Logger:     a.logger,
			})
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("relay bot stopped: %w", err)
	}

	return nil
}

// Migrate applies journal migrations.
func (a *App) Migrate(ctx context.Context) error {
	if !a.cfg.JournalEnabled() {
		return fmt.Errorf("%w: POSTGRES_DSN is not set", apperrors.ErrJournalDisabled)
	}

	database, err := db.New(ctx, a.cfg.PostgresDSN, a.logger)
	if err != nil {
		return fmt.Errorf("connect to journal: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}

	a.logger.Info().Msg("Journal migrations applied")

	return nil
}

// Scan runs the configured OCR engine on a local image and prints the card.
func (a *App) Scan(ctx context.Context, path string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	engine, err := ocr.New(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("build OCR engine: %w", err)
	}

	defer a.closeEngine(engine)

	return ScanImage(ctx, engine, data, a.pipelineOptions(), w)
}

// ScanImage prints the recognized text and, when it is a phrase card, the
// message the bot would relay. A text that is not a card is reported, not
// returned as an error.
func ScanImage(ctx context.Context, engine ocr.Engine, data []byte, opts pipeline.Options, w io.Writer) error {
	prepared, err := ocr.Prepare(data, opts.ImageLimits())
	if err != nil {
		return fmt.Errorf("prepare image: %w", err)
	}

	if opts.OCRTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.OCRTimeout)
		defer cancel()
	}

	res, err := engine.Recognize(ctx, ocr.Input{ID: "scan", Image: prepared.PNG, Languages: opts.Languages})
	if err != nil {
		return fmt.Errorf("recognize with %s: %w", engine.Name(), err)
	}

	fmt.Fprintf(w, "engine: %s\nsource: %s %dx%d (scaled: %t)\n\n--- text ---\n%s\n\n",
		engine.Name(), prepared.SourceFormat, prepared.Width, prepared.Height, prepared.Scaled, res.PlainText)

	card, err := flashcard.Parse(res.PlainText)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoWatermark) || apperrors.Is(err, apperrors.ErrEmptyText) || apperrors.Is(err, apperrors.ErrNoPhrasePair) {
			fmt.Fprintf(w, "not a phrase card: %v\n", err)
			return nil
		}

		return fmt.Errorf("parse card: %w", err)
	}

	fmt.Fprintf(w, "--- card ---\n%s\n", flashcard.Format(card))

	return nil
}

func (a *App) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		ReplyInSource: a.cfg.ReplyInSource,
		OCRTimeout:    a.cfg.OCRTimeout,
		MaxImageBytes: a.cfg.OCRMaxImageBytes,
		MaxPixels:     a.cfg.OCRMaxPixels,
		MaxDimension:  a.cfg.OCRMaxDimension,
		Languages:     a.cfg.OCRLanguages,
		DedupWindow:   a.cfg.RelayDedupWindow,
	}
}

// openJournal connects and migrates the journal, or returns nil when it is
// not configured.
func (a *App) openJournal(ctx context.Context) (*db.DB, error) {
	if !a.cfg.JournalEnabled() {
		a.logger.Info().Msg("Card journal disabled")
		return nil, nil //nolint:nilnil // journal is optional
	}

	database, err := db.New(ctx, a.cfg.PostgresDSN, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to journal: %w", err)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return database, nil
}

func (a *App) pruneJournal(journal journalPruner) func(ctx context.Context) {
	return func(ctx context.Context) {
		before := time.Now().Add(-a.cfg.JournalRetention)

		deleted, err := journal.PruneCardsBefore(ctx, before)
		if err != nil {
			a.logger.Warn().Err(err).Msg("failed to prune card journal")
			return
		}

		if deleted > 0 {
			a.logger.Info().Int64("deleted", deleted).Time("before", before).Msg("Pruned card journal")
		}
	}
}

func (a *App) closeEngine(engine ocr.Engine) {
	if err := ocr.Close(engine); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn().Err(err).Msg("failed to close OCR engine")
	}
}
