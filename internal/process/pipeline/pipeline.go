// Package pipeline runs the per-image relay: fetch, prepare, recognize, parse,
// deliver and journal. One call handles one image; callers log the returned
// error and move on to the next update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
	"github.com/lueurxax/phrase-relay-bot/internal/core/ocr"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/observability"
	"github.com/lueurxax/phrase-relay-bot/internal/process/flashcard"
	db "github.com/lueurxax/phrase-relay-bot/internal/storage"
)

// Destination kinds used in logs and metrics.
const (
	DestinationSource = "source"
	DestinationTarget = "target"
)

const (
	logFieldJobID   = "job_id"
	logFieldChatID  = "chat_id"
	logFieldOutcome = "outcome"
)

var errAllDeliveriesFailed = errors.New("all deliveries failed")

// ImageFetcher downloads an attachment by its platform file id.
type ImageFetcher interface {
	FetchImage(ctx context.Context, fileID string, maxBytes int) ([]byte, error)
}

// Sender posts a formatted card. replyTo is zero for a plain message.
type Sender interface {
	SendCard(ctx context.Context, chatID int64, replyTo int, text string) error
}

// TargetSource yields the current destination chat; zero means none.
type TargetSource interface {
	Target() int64
}

// Journal persists relayed cards. It is optional.
type Journal interface {
	RecordCard(ctx context.Context, rec db.CardRecord) error
	CardSeenSince(ctx context.Context, fingerprint string, since time.Time) (bool, error)
}

// Job is one image attachment to process.
type Job struct {
	ID        string
	ChatID    int64
	MessageID int
	FileID    string
	Kind      string
}

// Outcome summarizes what happened to a job.
type Outcome struct {
	Result    string
	Card      flashcard.Card
	Delivered int
	Failed    int
}

// Options tune the pipeline.
type Options struct {
	ReplyInSource bool
	OCRTimeout    time.Duration
	MaxImageBytes int
	MaxPixels     int64
	MaxDimension  int
	Languages     []string
	DedupWindow   time.Duration
}

// ImageLimits returns the bounds applied to downloaded images.
func (o Options) ImageLimits() ocr.Limits {
	return ocr.Limits{
		MaxBytes:     o.MaxImageBytes,
		MaxPixels:    o.MaxPixels,
		MaxDimension: o.MaxDimension,
	}
}

type destination struct {
	chatID  int64
	replyTo int
	kind    string
}

type Pipeline struct {
	fetcher ImageFetcher
	engine  ocr.Engine
	sender  Sender
	targets TargetSource
	journal Journal
	opts    Options
	logger  *zerolog.Logger
	now     func() time.Time
}

// New builds a pipeline. journal may be nil.
func New(fetcher ImageFetcher, engine ocr.Engine, sender Sender, targets TargetSource, journal Journal, opts Options, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		engine:  engine,
		sender:  sender,
		targets: targets,
		journal: journal,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle processes one image. Texts that are not phrase cards are a normal
// outcome, not an error.
func (p *Pipeline) Handle(ctx context.Context, job Job) (Outcome, error) {
	logger := p.logger.With().Str(logFieldJobID, job.ID).Int64(logFieldChatID, job.ChatID).Logger()

	out, err := p.handle(ctx, job, &logger)
	if err != nil {
		out.Result = observability.OutcomeError
	}

	observability.ImagesProcessed.WithLabelValues(out.Result).Inc()

	logger.Debug().Str(logFieldOutcome, out.Result).Int("delivered", out.Delivered).Msg("image processed")

	return out, err
}

func (p *Pipeline) handle(ctx context.Context, job Job, logger *zerolog.Logger) (Outcome, error) {
	text, err := p.recognize(ctx, job)
	if err != nil {
		return Outcome{}, err
	}

	card, err := flashcard.Parse(text)
	if err != nil {
		if result, ok := parseOutcome(err); ok {
			return Outcome{Result: result}, nil
		}

		return Outcome{}, fmt.Errorf("parse card: %w", err)
	}

	out := Outcome{Card: card}

	dests := p.destinations(job)
	if len(dests) == 0 {
		out.Result = observability.OutcomeNoDestination

		logger.Warn().Str("english", card.English).Msg("no destination configured, card dropped")

		return out, nil
	}

	duplicate, err := p.isDuplicate(ctx, card)
	if err != nil {
		logger.Warn().Err(err).Msg("dedup lookup failed, relaying anyway")
	}

	if duplicate {
		out.Result = observability.OutcomeDuplicate

		return out, nil
	}

	formatted := flashcard.Format(card)

	for _, d := range dests {
		if err := p.sender.SendCard(ctx, d.chatID, d.replyTo, formatted); err != nil {
			out.Failed++

			observability.MessagesSent.WithLabelValues(d.kind, "error").Inc()
			logger.Error().Err(err).Int64("destination", d.chatID).Str("kind", d.kind).Msg("failed to deliver card")

			continue
		}

		out.Delivered++

		observability.MessagesSent.WithLabelValues(d.kind, "success").Inc()
	}

	if out.Delivered == 0 {
		return out, fmt.Errorf("deliver card to %d destinations: %w", len(dests), errAllDeliveriesFailed)
	}

	out.Result = observability.OutcomeRelayed

	p.record(ctx, job, card, out.Delivered, logger)

	logger.Info().Str("english", card.English).Int("delivered", out.Delivered).Msg("phrase card relayed")

	return out, nil
}

func (p *Pipeline) recognize(ctx context.Context, job Job) (string, error) {
	data, err := p.fetcher.FetchImage(ctx, job.FileID, p.opts.MaxImageBytes)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}

	prepared, err := ocr.Prepare(data, p.opts.ImageLimits())
	if err != nil {
		return "", fmt.Errorf("prepare image: %w", err)
	}

	ocrCtx := ctx

	if p.opts.OCRTimeout > 0 {
		var cancel context.CancelFunc

		ocrCtx, cancel = context.WithTimeout(ctx, p.opts.OCRTimeout)
		defer cancel()
	}

	res, err := p.engine.Recognize(ocrCtx, ocr.Input{
		ID:        job.ID,
		Image:     prepared.PNG,
		Languages: p.opts.Languages,
	})
	if err != nil {
		return "", fmt.Errorf("recognize with %s: %w", p.engine.Name(), err)
	}

	return res.PlainText, nil
}

func parseOutcome(err error) (string, bool) {
	switch {
	case errors.Is(err, apperrors.ErrNoWatermark):
		return observability.OutcomeNoWatermark, true
	case errors.Is(err, apperrors.ErrEmptyText):
		return observability.OutcomeEmpty, true
	case errors.Is(err, apperrors.ErrNoPhrasePair):
		return observability.OutcomeNoPair, true
	default:
		return "", false
	}
}

func (p *Pipeline) isDuplicate(ctx context.Context, card flashcard.Card) (bool, error) {
	if p.journal == nil || p.opts.DedupWindow <= 0 {
		return false, nil
	}

	seen, err := p.journal.CardSeenSince(ctx, card.Fingerprint(), p.now().Add(-p.opts.DedupWindow))
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}

	return seen, nil
}

// destinations lists where a card goes: a reply in the source chat and the
// configured target. The target is skipped when it is the source chat.
func (p *Pipeline) destinations(job Job) []destination {
	dests := make([]destination, 0, 2)

	if p.opts.ReplyInSource {
		dests = append(dests, destination{chatID: job.ChatID, replyTo: job.MessageID, kind: DestinationSource})
	}

	target := p.targets.Target()
	if target != 0 && (target != job.ChatID || !p.opts.ReplyInSource) {
		dests = append(dests, destination{chatID: target, kind: DestinationTarget})
	}

	return dests
}

func (p *Pipeline) record(ctx context.Context, job Job, card flashcard.Card, delivered int, logger *zerolog.Logger) {
	if p.journal == nil {
		return
	}

	err := p.journal.RecordCard(ctx, db.CardRecord{
		Fingerprint:     card.Fingerprint(),
		English:         card.English,
		Spanish:         card.Spanish,
		SourceChatID:    job.ChatID,
		SourceMessageID: job.MessageID,
		OCREngine:       p.engine.Name(),
		Delivered:       delivered,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to journal relayed card")
	}
}
